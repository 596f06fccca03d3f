package forecasting

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type TrainedModelRepo interface {
	Create(dbc dbctx.Context, row *types.TrainedModel) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainedModel, error)
	GetActive(dbc dbctx.Context) (*types.TrainedModel, error)
	List(dbc dbctx.Context, limit int) ([]*types.TrainedModel, error)
	NextVersion(dbc dbctx.Context, name string) (int, error)
	// SetActiveByID makes id the only active model in one transaction.
	SetActiveByID(dbc dbctx.Context, id uuid.UUID) error
	Deactivate(dbc dbctx.Context, id uuid.UUID) error
	CountActive(dbc dbctx.Context) (int64, error)
}

type trainedModelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrainedModelRepo(db *gorm.DB, baseLog *logger.Logger) TrainedModelRepo {
	return &trainedModelRepo{db: db, log: baseLog.With("repo", "TrainedModelRepo")}
}

func (r *trainedModelRepo) Create(dbc dbctx.Context, row *types.TrainedModel) error {
	if row == nil || strings.TrimSpace(row.Name) == "" {
		return apperrors.Validation("model name is required")
	}
	if row.TrainedAt.IsZero() {
		row.TrainedAt = time.Now().UTC()
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *trainedModelRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainedModel, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.TrainedModel
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *trainedModelRepo) GetActive(dbc dbctx.Context) (*types.TrainedModel, error) {
	var out []*types.TrainedModel
	if err := dbc.DB(r.db).
		Where("is_active = ?", true).
		Order("trained_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *trainedModelRepo) List(dbc dbctx.Context, limit int) ([]*types.TrainedModel, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	out := []*types.TrainedModel{}
	if err := dbc.DB(r.db).Order("trained_at DESC, version DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainedModelRepo) NextVersion(dbc dbctx.Context, name string) (int, error) {
	var maxVersion sql.NullInt64
	if err := dbc.DB(r.db).
		Model(&types.TrainedModel{}).
		Where("name = ?", name).
		Select("MAX(version)").
		Row().
		Scan(&maxVersion); err != nil {
		return 0, err
	}
	if !maxVersion.Valid {
		return 1, nil
	}
	return int(maxVersion.Int64) + 1, nil
}

func (r *trainedModelRepo) SetActiveByID(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperrors.Validation("model id is required")
	}
	return dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		// Locking every row in id order serializes concurrent activations, so
		// the second one observes the first one's flag and clears it.
		var ids []uuid.UUID
		if err := tx.Model(&types.TrainedModel{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("id ASC").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		var row types.TrainedModel
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}
		now := time.Now()
		if err := tx.Model(&types.TrainedModel{}).
			Where("id <> ? AND is_active = ?", id, true).
			Updates(map[string]interface{}{"is_active": false, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&types.TrainedModel{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"is_active": true, "updated_at": now}).Error
	})
}

func (r *trainedModelRepo) Deactivate(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Model(&types.TrainedModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error
}

func (r *trainedModelRepo) CountActive(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.TrainedModel{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}
