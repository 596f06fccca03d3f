package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error)
	GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	// ClaimNextRunnable takes the oldest queued job, or a running job whose
	// heartbeat is older than staleRunning, and marks it running.
	ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	ExistsRunnable(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID) (bool, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	for _, j := range jobs {
		if j.Status == "" {
			j.Status = jobstatus.StatusQueued
		}
		if j.Stage == "" {
			j.Stage = jobstatus.StatusQueued
		}
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	var out []*types.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRunRepo) GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	if entityID == uuid.Nil || entityType == "" || jobType == "" {
		return nil, nil
	}
	var job types.JobRun
	err := dbc.DB(r.db).
		Where("entity_type = ? AND entity_id = ? AND job_type = ?", entityType, entityID, jobType).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status = ?
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, jobstatus.StatusQueued, jobstatus.StatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       jobstatus.StatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = jobstatus.StatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}

	q := dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobstatus.StatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *jobRunRepo) ExistsRunnable(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID) (bool, error) {
	if jobType == "" {
		return false, nil
	}
	q := dbc.DB(r.db).Model(&types.JobRun{}).
		Where("job_type = ? AND status IN ?", jobType, []string{jobstatus.StatusQueued, jobstatus.StatusRunning})
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID != nil && *entityID != uuid.Nil {
		q = q.Where("entity_id = ?", *entityID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
