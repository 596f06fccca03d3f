package forecasting

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type BatchJobRepo interface {
	Create(dbc dbctx.Context, row *types.BatchJob) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BatchJob, error)
	List(dbc dbctx.Context, limit int) ([]*types.BatchJob, error)
	// Transition moves id to status `to` only if it is currently in one of `from`.
	Transition(dbc dbctx.Context, id uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error)
	// AddProgress atomically adds processed and failed items while processing.
	// It refuses increments that would push completed past total.
	AddProgress(dbc dbctx.Context, id uuid.UUID, processed, failed int) (bool, error)
	RequestCancel(dbc dbctx.Context, id uuid.UUID) (bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type batchJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchJobRepo(db *gorm.DB, baseLog *logger.Logger) BatchJobRepo {
	return &batchJobRepo{db: db, log: baseLog.With("repo", "BatchJobRepo")}
}

func (r *batchJobRepo) Create(dbc dbctx.Context, row *types.BatchJob) error {
	if row == nil {
		return nil
	}
	if row.Status == "" {
		row.Status = forecasting.BatchPending
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *batchJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BatchJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.BatchJob
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *batchJobRepo) List(dbc dbctx.Context, limit int) ([]*types.BatchJob, error) {
	if limit <= 0 {
		limit = 50
	}
	out := []*types.BatchJob{}
	if err := dbc.DB(r.db).Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *batchJobRepo) Transition(dbc dbctx.Context, id uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || len(from) == 0 {
		return false, nil
	}
	for _, f := range from {
		if !forecasting.CanTransition(f, to) && f != to {
			return false, nil
		}
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := dbc.DB(r.db).Model(&types.BatchJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *batchJobRepo) AddProgress(dbc dbctx.Context, id uuid.UUID, processed, failed int) (bool, error) {
	if id == uuid.Nil || processed <= 0 {
		return false, nil
	}
	res := dbc.DB(r.db).Model(&types.BatchJob{}).
		Where("id = ? AND status = ? AND completed_predictions + ? <= total_predictions", id, forecasting.BatchProcessing, processed).
		Updates(map[string]interface{}{
			"completed_predictions": gorm.Expr("completed_predictions + ?", processed),
			"failed_predictions":    gorm.Expr("failed_predictions + ?", failed),
			"updated_at":            time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *batchJobRepo) RequestCancel(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Model(&types.BatchJob{}).
		Where("id = ? AND status IN ?", id, []string{forecasting.BatchPending, forecasting.BatchProcessing}).
		Updates(map[string]interface{}{"cancel_requested": true, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *batchJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).Model(&types.BatchJob{}).Where("id = ?", id).Updates(updates).Error
}
