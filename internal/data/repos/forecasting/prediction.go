package forecasting

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type PredictionRepo interface {
	// InsertIgnoreConflicts keeps the first row written per (model, store, sku, date)
	// and returns how many rows were actually inserted.
	InsertIgnoreConflicts(dbc dbctx.Context, rows []*types.Prediction) (int, error)
	Get(dbc dbctx.Context, modelID uuid.UUID, storeID, sku string, date civil.Date) (*types.Prediction, error)
	// ListInWindow returns predictions of modelID with target date in [from, to].
	ListInWindow(dbc dbctx.Context, modelID uuid.UUID, from, to civil.Date) ([]*types.Prediction, error)
	// ListEvaluated returns predictions of modelID created since `since` that carry an actual.
	ListEvaluated(dbc dbctx.Context, modelID uuid.UUID, since time.Time) ([]*types.Prediction, error)
	// BackfillActuals copies observed sales into actual_demand for dates in [from, to].
	BackfillActuals(dbc dbctx.Context, from, to civil.Date) (int64, error)
	CountByModel(dbc dbctx.Context, modelID uuid.UUID) (int64, error)
}

type predictionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPredictionRepo(db *gorm.DB, baseLog *logger.Logger) PredictionRepo {
	return &predictionRepo{db: db, log: baseLog.With("repo", "PredictionRepo")}
}

func (r *predictionRepo) InsertIgnoreConflicts(dbc dbctx.Context, rows []*types.Prediction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		row.TargetDate = civildate.ToTime(row.Day())
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "model_id"}, {Name: "store_id"}, {Name: "sku_id"}, {Name: "prediction_date"},
			},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *predictionRepo) Get(dbc dbctx.Context, modelID uuid.UUID, storeID, sku string, date civil.Date) (*types.Prediction, error) {
	var out []*types.Prediction
	if err := dbc.DB(r.db).
		Where("model_id = ? AND store_id = ? AND sku_id = ? AND prediction_date = ?", modelID, storeID, sku, civildate.ToTime(date)).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *predictionRepo) ListInWindow(dbc dbctx.Context, modelID uuid.UUID, from, to civil.Date) ([]*types.Prediction, error) {
	out := []*types.Prediction{}
	if to.Before(from) {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("model_id = ? AND prediction_date >= ? AND prediction_date <= ?", modelID, civildate.ToTime(from), civildate.ToTime(to)).
		Order("store_id ASC, sku_id ASC, prediction_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *predictionRepo) ListEvaluated(dbc dbctx.Context, modelID uuid.UUID, since time.Time) ([]*types.Prediction, error) {
	out := []*types.Prediction{}
	if err := dbc.DB(r.db).
		Where("model_id = ? AND actual_demand IS NOT NULL AND created_at >= ?", modelID, since).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *predictionRepo) BackfillActuals(dbc dbctx.Context, from, to civil.Date) (int64, error) {
	if to.Before(from) {
		return 0, nil
	}
	match := "sales_observation.store_id = forecast_prediction.store_id" +
		" AND sales_observation.sku_id = forecast_prediction.sku_id" +
		" AND sales_observation.date = forecast_prediction.prediction_date"
	res := dbc.DB(r.db).Exec(
		"UPDATE forecast_prediction SET actual_demand = (SELECT sales_observation.sales FROM sales_observation WHERE "+match+"), updated_at = ?"+
			" WHERE actual_demand IS NULL AND prediction_date >= ? AND prediction_date <= ?"+
			" AND EXISTS (SELECT 1 FROM sales_observation WHERE "+match+")",
		time.Now(), civildate.ToTime(from), civildate.ToTime(to),
	)
	return res.RowsAffected, res.Error
}

func (r *predictionRepo) CountByModel(dbc dbctx.Context, modelID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Prediction{}).Where("model_id = ?", modelID).Count(&n).Error
	return n, err
}
