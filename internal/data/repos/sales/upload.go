package sales

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type DataUploadRepo interface {
	Create(dbc dbctx.Context, row *types.DataUpload) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DataUpload, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// AddCounts atomically increments processed and error counters.
	AddCounts(dbc dbctx.Context, id uuid.UUID, processed, errored int) error
}

type dataUploadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataUploadRepo(db *gorm.DB, baseLog *logger.Logger) DataUploadRepo {
	return &dataUploadRepo{db: db, log: baseLog.With("repo", "DataUploadRepo")}
}

func (r *dataUploadRepo) Create(dbc dbctx.Context, row *types.DataUpload) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *dataUploadRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DataUpload, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.DataUpload
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *dataUploadRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).Model(&types.DataUpload{}).Where("id = ?", id).Updates(updates).Error
}

func (r *dataUploadRepo) AddCounts(dbc dbctx.Context, id uuid.UUID, processed, errored int) error {
	if id == uuid.Nil || (processed == 0 && errored == 0) {
		return nil
	}
	return dbc.DB(r.db).Model(&types.DataUpload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed_records": gorm.Expr("processed_records + ?", processed),
		"error_records":     gorm.Expr("error_records + ?", errored),
		"updated_at":        time.Now(),
	}).Error
}
