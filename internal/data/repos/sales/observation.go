package sales

import (
	"strings"

	"cloud.google.com/go/civil"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type ObservationRepo interface {
	// Upsert inserts rows and overwrites sales, price, on_hand and promotion on key conflict.
	Upsert(dbc dbctx.Context, rows []*types.Observation) (int, error)
	// ListWindow returns one series in [from, to] ordered by date.
	ListWindow(dbc dbctx.Context, storeID, sku string, from, to civil.Date) ([]*types.Observation, error)
	// ListRange returns every observation in the optional range, ordered by store, sku, date.
	ListRange(dbc dbctx.Context, from, to *civil.Date) ([]*types.Observation, error)
	// Latest returns the most recent observation for a series, or nil.
	Latest(dbc dbctx.Context, storeID, sku string) (*types.Observation, error)
	Count(dbc dbctx.Context) (int64, error)
}

type observationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewObservationRepo(db *gorm.DB, baseLog *logger.Logger) ObservationRepo {
	return &observationRepo{db: db, log: baseLog.With("repo", "ObservationRepo")}
}

func (r *observationRepo) Upsert(dbc dbctx.Context, rows []*types.Observation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	rows = dedupeByKey(rows)
	if len(rows) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "sku_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sales",
				"price",
				"on_hand",
				"promotions_flag",
				"upload_id",
				"updated_at",
			}),
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return len(rows), nil
}

func (r *observationRepo) ListWindow(dbc dbctx.Context, storeID, sku string, from, to civil.Date) ([]*types.Observation, error) {
	var out []*types.Observation
	storeID, sku = strings.TrimSpace(storeID), strings.TrimSpace(sku)
	if storeID == "" || sku == "" || to.Before(from) {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("store_id = ? AND sku_id = ? AND date >= ? AND date <= ?", storeID, sku, civildate.ToTime(from), civildate.ToTime(to)).
		Order("date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *observationRepo) ListRange(dbc dbctx.Context, from, to *civil.Date) ([]*types.Observation, error) {
	var out []*types.Observation
	q := dbc.DB(r.db)
	if from != nil {
		q = q.Where("date >= ?", civildate.ToTime(*from))
	}
	if to != nil {
		q = q.Where("date <= ?", civildate.ToTime(*to))
	}
	if err := q.Order("store_id ASC, sku_id ASC, date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *observationRepo) Latest(dbc dbctx.Context, storeID, sku string) (*types.Observation, error) {
	var out []*types.Observation
	if err := dbc.DB(r.db).
		Where("store_id = ? AND sku_id = ?", storeID, sku).
		Order("date DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *observationRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Observation{}).Count(&n).Error
	return n, err
}

// dedupeByKey keeps the last row per (store, sku, date); postgres rejects an
// upsert batch that touches the same key twice.
func dedupeByKey(rows []*types.Observation) []*types.Observation {
	type key struct {
		store, sku string
		day        civil.Date
	}
	pos := make(map[key]int, len(rows))
	out := make([]*types.Observation, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		row.Date = civildate.ToTime(row.Day())
		k := key{row.StoreID, row.SKU, row.Day()}
		if i, ok := pos[k]; ok {
			out[i] = row
			continue
		}
		pos[k] = len(out)
		out = append(out, row)
	}
	return out
}
