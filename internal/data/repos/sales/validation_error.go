package sales

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type ValidationErrorRepo interface {
	Create(dbc dbctx.Context, rows []*types.DataValidationError) error
	// ListByUpload returns the first limit errors by row number.
	ListByUpload(dbc dbctx.Context, uploadID uuid.UUID, limit int) ([]*types.DataValidationError, error)
	CountByUpload(dbc dbctx.Context, uploadID uuid.UUID) (int64, error)
	DeleteByUpload(dbc dbctx.Context, uploadID uuid.UUID) error
}

type validationErrorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewValidationErrorRepo(db *gorm.DB, baseLog *logger.Logger) ValidationErrorRepo {
	return &validationErrorRepo{db: db, log: baseLog.With("repo", "ValidationErrorRepo")}
}

func (r *validationErrorRepo) Create(dbc dbctx.Context, rows []*types.DataValidationError) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).CreateInBatches(&rows, 500).Error
}

func (r *validationErrorRepo) ListByUpload(dbc dbctx.Context, uploadID uuid.UUID, limit int) ([]*types.DataValidationError, error) {
	out := []*types.DataValidationError{}
	if uploadID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if err := dbc.DB(r.db).
		Where("upload_id = ?", uploadID).
		Order("row_number ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *validationErrorRepo) CountByUpload(dbc dbctx.Context, uploadID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.DataValidationError{}).Where("upload_id = ?", uploadID).Count(&n).Error
	return n, err
}

func (r *validationErrorRepo) DeleteByUpload(dbc dbctx.Context, uploadID uuid.UUID) error {
	if uploadID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("upload_id = ?", uploadID).Delete(&types.DataValidationError{}).Error
}
