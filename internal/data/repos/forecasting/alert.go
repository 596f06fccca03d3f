package forecasting

import (
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

type AlertFilter struct {
	StoreID      string
	SKU          string
	AlertType    string
	Acknowledged *bool
	Limit        int
}

type AlertRepo interface {
	// GetOrCreateOpen returns the open alert for (store, sku, type) or creates row.
	// created is false when one was already outstanding.
	GetOrCreateOpen(dbc dbctx.Context, row *types.Alert) (alert *types.Alert, created bool, err error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Alert, error)
	// Acknowledge marks id acknowledged once. already is true on repeat calls.
	Acknowledge(dbc dbctx.Context, id uuid.UUID, actor string, at time.Time) (alert *types.Alert, already bool, err error)
	List(dbc dbctx.Context, f AlertFilter) ([]*types.Alert, error)
}

type alertRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAlertRepo(db *gorm.DB, baseLog *logger.Logger) AlertRepo {
	return &alertRepo{db: db, log: baseLog.With("repo", "AlertRepo")}
}

func findOpen(tx *gorm.DB, storeID, sku, alertType string) (*types.Alert, error) {
	var out []*types.Alert
	if err := tx.
		Where("store_id = ? AND sku_id = ? AND alert_type = ? AND is_acknowledged = ?", storeID, sku, alertType, false).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *alertRepo) GetOrCreateOpen(dbc dbctx.Context, row *types.Alert) (*types.Alert, bool, error) {
	if row == nil || row.StoreID == "" || row.SKU == "" || row.AlertType == "" {
		return nil, false, apperrors.Validation("alert needs store, sku and type")
	}
	row.IsAcknowledged = false
	var (
		out     *types.Alert
		created bool
	)
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		existing, err := findOpen(tx, row.StoreID, row.SKU, row.AlertType)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		out, created = row, true
		return nil
	})
	if err != nil {
		// A concurrent writer won the partial unique index; hand back its row.
		if existing, findErr := findOpen(dbc.DB(r.db), row.StoreID, row.SKU, row.AlertType); findErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return out, created, nil
}

func (r *alertRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Alert, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Alert
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *alertRepo) Acknowledge(dbc dbctx.Context, id uuid.UUID, actor string, at time.Time) (*types.Alert, bool, error) {
	var (
		out     types.Alert
		already bool
	)
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}
		if out.IsAcknowledged {
			already = true
			return nil
		}
		out.IsAcknowledged = true
		out.AcknowledgedBy = strings.TrimSpace(actor)
		out.AcknowledgedAt = &at
		return tx.Model(&types.Alert{}).Where("id = ?", id).Updates(map[string]interface{}{
			"is_acknowledged": true,
			"acknowledged_by": out.AcknowledgedBy,
			"acknowledged_at": at,
			"updated_at":      time.Now(),
		}).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &out, already, nil
}

func (r *alertRepo) List(dbc dbctx.Context, f AlertFilter) ([]*types.Alert, error) {
	q := dbc.DB(r.db)
	if f.StoreID != "" {
		q = q.Where("store_id = ?", f.StoreID)
	}
	if f.SKU != "" {
		q = q.Where("sku_id = ?", f.SKU)
	}
	if f.AlertType != "" {
		q = q.Where("alert_type = ?", f.AlertType)
	}
	if f.Acknowledged != nil {
		q = q.Where("is_acknowledged = ?", *f.Acknowledged)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out := []*types.Alert{}
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
