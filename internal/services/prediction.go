package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/features"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

// PredictionResult is one point forecast with its band.
type PredictionResult struct {
	StoreID         string     `json:"store_id"`
	SKU             string     `json:"sku_id"`
	Date            civil.Date `json:"date"`
	Demand          float64    `json:"predicted_demand"`
	Lower           float64    `json:"confidence_lower"`
	Upper           float64    `json:"confidence_upper"`
	ModelID         uuid.UUID  `json:"model_id"`
	ModelName       string     `json:"model_name"`
	ModelVersion    int        `json:"model_version"`
	UnknownStore    bool       `json:"unknown_store,omitempty"`
	UnknownProduct  bool       `json:"unknown_product,omitempty"`
	HistoryObserved int        `json:"history_observations"`
}

// ConfidencePolicy turns a point estimate into a band.
type ConfidencePolicy interface {
	Band(demand float64) (lower, upper float64)
}

// ProportionalBand assumes an error of ErrorFraction*demand and a Z-score multiplier.
type ProportionalBand struct {
	ErrorFraction float64
	Z             float64
}

func (p ProportionalBand) Band(demand float64) (float64, float64) {
	half := p.Z * p.ErrorFraction * demand
	return math.Max(0, demand-half), demand + half
}

type PredictionServiceOptions struct {
	HistoryDays int
	Confidence  ConfidencePolicy
}

type PredictionService interface {
	// PredictSingle returns nil when no model is active or the series has no history.
	PredictSingle(ctx context.Context, storeID, sku string, date civil.Date) (*PredictionResult, error)
	// PredictWith is PredictSingle pinned to lm instead of the active model.
	PredictWith(ctx context.Context, lm *LoadedModel, storeID, sku string, date civil.Date) (*PredictionResult, error)
	// PredictBatch walks stores x skus x dates store-major and skips nil results.
	PredictBatch(ctx context.Context, storeIDs, skus []string, from, to civil.Date) ([]*PredictionResult, error)
}

type predictionService struct {
	db       *gorm.DB
	log      *logger.Logger
	registry ModelRegistry
	obs      repos.ObservationRepo
	cache    PredictionCache
	metrics  *observability.Metrics
	opts     PredictionServiceOptions
}

func NewPredictionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry ModelRegistry,
	obs repos.ObservationRepo,
	cache PredictionCache,
	metrics *observability.Metrics,
	opts PredictionServiceOptions,
) PredictionService {
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 60
	}
	if opts.Confidence == nil {
		opts.Confidence = ProportionalBand{ErrorFraction: 0.2, Z: 1.96}
	}
	if cache == nil {
		cache = NewMemoryPredictionCache(time.Hour, 0)
	}
	s := &predictionService{
		db:       db,
		log:      baseLog.With("service", "PredictionService"),
		registry: registry,
		obs:      obs,
		cache:    cache,
		metrics:  metrics,
		opts:     opts,
	}
	if registry != nil {
		registry.OnChange(func(uuid.UUID) { s.cache.Purge(context.Background()) })
	}
	return s
}

func (s *predictionService) PredictSingle(ctx context.Context, storeID, sku string, date civil.Date) (*PredictionResult, error) {
	lm, err := s.registry.Current(ctx)
	if err != nil {
		return nil, err
	}
	if lm == nil {
		s.metrics.ObservePrediction("no_model", 0)
		return nil, nil
	}
	return s.PredictWith(ctx, lm, storeID, sku, date)
}

func (s *predictionService) PredictWith(ctx context.Context, lm *LoadedModel, storeID, sku string, date civil.Date) (*PredictionResult, error) {
	if lm == nil || lm.Model == nil || lm.Regressor == nil {
		return nil, nil
	}
	start := time.Now()
	key := PredictionCacheKey(lm.Model.ID, storeID, sku, date)
	if hit, ok := s.cache.Get(ctx, key); ok {
		s.metrics.ObserveCacheLookup(s.cache.Backend(), true)
		s.metrics.ObservePrediction("cached", time.Since(start))
		return hit, nil
	}
	s.metrics.ObserveCacheLookup(s.cache.Backend(), false)

	ctx, span := observability.StartSpan(ctx, "forecast.predict",
		attribute.String("store_id", storeID),
		attribute.String("sku_id", sku),
		attribute.String("date", date.String()),
	)
	defer span.End()

	window, err := s.obs.ListWindow(dbctx.Context{Ctx: ctx}, storeID, sku, date.AddDays(-s.opts.HistoryDays), date)
	if err != nil {
		s.metrics.ObservePrediction("error", time.Since(start))
		return nil, fmt.Errorf("load history %s/%s: %w", storeID, sku, err)
	}
	inf, ok := features.PrepareForInference(lm.Encoders, lm.Schema, storeID, sku, date, features.PointsFromObservations(window))
	if !ok {
		s.metrics.ObservePrediction("no_history", time.Since(start))
		return nil, nil
	}
	out, err := lm.Regressor.Predict([][]float64{inf.Vector})
	if err != nil || len(out) != 1 {
		s.metrics.ObservePrediction("error", time.Since(start))
		if err == nil {
			err = fmt.Errorf("regressor returned %d values", len(out))
		}
		return nil, fmt.Errorf("predict %s/%s %s: %w", storeID, sku, date, err)
	}
	demand := out[0]
	if math.IsNaN(demand) || demand < 0 {
		demand = 0
	}
	lower, upper := s.opts.Confidence.Band(demand)
	res := &PredictionResult{
		StoreID:         storeID,
		SKU:             sku,
		Date:            date,
		Demand:          demand,
		Lower:           lower,
		Upper:           upper,
		ModelID:         lm.Model.ID,
		ModelName:       lm.Model.Name,
		ModelVersion:    lm.Model.Version,
		UnknownStore:    inf.UnknownStore,
		UnknownProduct:  inf.UnknownProduct,
		HistoryObserved: inf.History,
	}
	if inf.UnknownStore || inf.UnknownProduct {
		s.log.Debug("Unseen category encoded as 0", "store_id", storeID, "sku_id", sku,
			"unknown_store", inf.UnknownStore, "unknown_product", inf.UnknownProduct)
	}
	s.cache.Set(ctx, key, res)
	s.metrics.ObservePrediction("ok", time.Since(start))
	return res, nil
}

func (s *predictionService) PredictBatch(ctx context.Context, storeIDs, skus []string, from, to civil.Date) ([]*PredictionResult, error) {
	if to.Before(from) {
		return nil, apperrors.Validation("date_from %s is after date_to %s", from, to)
	}
	lm, err := s.registry.Current(ctx)
	if err != nil {
		return nil, err
	}
	out := []*PredictionResult{}
	if lm == nil {
		return out, nil
	}
	for _, store := range storeIDs {
		for _, sku := range skus {
			for d := from; !d.After(to); d = d.AddDays(1) {
				if err := ctx.Err(); err != nil {
					return out, err
				}
				res, err := s.PredictWith(ctx, lm, store, sku, d)
				if err != nil {
					s.log.Warn("Batch item failed", "store_id", store, "sku_id", sku, "date", d, "error", err)
					continue
				}
				if res != nil {
					out = append(out, res)
				}
			}
		}
	}
	return out, nil
}
