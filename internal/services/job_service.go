package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/pkg/ctxutil"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

const (
	EntityBatchJob     = "batch_job"
	EntityTrainedModel = "trained_model"
	EntityDataUpload   = "data_upload"
)

type JobService interface {
	Enqueue(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, requestedBy string, payload map[string]any) (*types.JobRun, error)
	// EnqueueIfIdle skips the insert while a queued or running run of the same
	// type and entity exists. The bool reports whether a run was created.
	EnqueueIfIdle(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, requestedBy string, payload map[string]any) (*types.JobRun, bool, error)
	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	Cancel(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	Restart(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
}

type jobService struct {
	db      *gorm.DB
	log     *logger.Logger
	repo    repos.JobRunRepo
	batches repos.BatchJobRepo
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, batches repos.BatchJobRepo) JobService {
	return &jobService{
		db:      db,
		log:     baseLog.With("service", "JobService"),
		repo:    repo,
		batches: batches,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, requestedBy string, payload map[string]any) (*types.JobRun, error) {
	if strings.TrimSpace(jobType) == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		RequestedBy: requestedBy,
		Status:      jobstatus.StatusQueued,
		Stage:       jobstatus.StatusQueued,
		Message:     "Queued",
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.log.Debug("Job enqueued", "job_id", job.ID, "job_type", jobType, "entity_type", entityType)
	return job, nil
}

func (s *jobService) EnqueueIfIdle(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, requestedBy string, payload map[string]any) (*types.JobRun, bool, error) {
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}
	has, err := s.repo.ExistsRunnable(repoCtx, jobType, entityType, entityID)
	if err != nil {
		return nil, false, err
	}
	if has {
		return nil, false, nil
	}
	job, err := s.Enqueue(repoCtx, jobType, entityType, entityID, requestedBy, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, apperrors.Validation("missing job id")
	}
	job, err := s.repo.GetByID(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	return job, nil
}

func (s *jobService) GetLatestForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	if entityType == "" || entityID == uuid.Nil || jobType == "" {
		return nil, apperrors.Validation("missing entity/job info")
	}
	return s.repo.GetLatestByEntity(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, entityType, entityID, jobType)
}

// Cancel marks a queued or running job canceled. Terminal jobs are returned
// unchanged. Canceling a batch_predict run also flags its BatchJob so the
// chunk loop stops at the next boundary.
func (s *jobService) Cancel(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, apperrors.Validation("missing job id")
	}
	var updated *types.JobRun
	err := dbc.DB(s.db).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		job, err := s.GetByID(inner, jobID)
		if err != nil {
			return err
		}
		if job.Terminal() {
			updated = job
			return nil
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, jobID, map[string]interface{}{
			"status":       jobstatus.StatusCanceled,
			"message":      "Canceled",
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		job.Status = jobstatus.StatusCanceled
		job.Message = "Canceled"
		job.LockedAt = nil
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		updated = job

		if job.JobType == jobstatus.TypeBatchPredict && job.EntityID != nil && s.batches != nil {
			if _, err := s.batches.RequestCancel(inner, *job.EntityID); err != nil {
				return fmt.Errorf("flag batch cancel: %w", err)
			}
			// A batch that never started has no chunk loop to notice the flag.
			if _, err := s.batches.Transition(inner, *job.EntityID, []string{forecasting.BatchPending}, forecasting.BatchFailed, map[string]interface{}{
				"error_log":   "canceled",
				"finished_at": now,
			}); err != nil {
				return fmt.Errorf("fail pending batch: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Job canceled", "job_id", jobID, "status", updated.Status)
	return updated, nil
}

// Restart requeues a failed or canceled run. Batch runs are not restartable;
// submit a new batch instead.
func (s *jobService) Restart(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, apperrors.Validation("missing job id")
	}
	var updated *types.JobRun
	err := dbc.DB(s.db).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		job, err := s.GetByID(inner, jobID)
		if err != nil {
			return err
		}
		if job.Status != jobstatus.StatusCanceled && job.Status != jobstatus.StatusFailed {
			return fmt.Errorf("job %s is %s: %w", jobID, job.Status, apperrors.ErrConflict)
		}
		if job.JobType == jobstatus.TypeBatchPredict {
			return fmt.Errorf("batch runs cannot be restarted: %w", apperrors.ErrConflict)
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, jobID, map[string]interface{}{
			"status":        jobstatus.StatusQueued,
			"stage":         jobstatus.StatusQueued,
			"progress":      0,
			"message":       "Restarting",
			"error":         "",
			"last_error_at": nil,
			"locked_at":     nil,
			"heartbeat_at":  now,
			"updated_at":    now,
		}); err != nil {
			return err
		}
		job.Status = jobstatus.StatusQueued
		job.Stage = jobstatus.StatusQueued
		job.Progress = 0
		job.Message = "Restarting"
		job.Error = ""
		job.LastErrorAt = nil
		job.LockedAt = nil
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
