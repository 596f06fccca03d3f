package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/artifacts"
	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/features"
	"github.com/yungbote/smartinventory-backend/internal/ml"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

const testFraction = 0.2

type TrainRequest struct {
	Name            string      `json:"model_name,omitempty"`
	From            *civil.Date `json:"data_date_from,omitempty"`
	To              *civil.Date `json:"data_date_to,omitempty"`
	Algorithm       string      `json:"algorithm,omitempty"`
	Hyperparameters ml.Params   `json:"hyperparameters,omitempty"`
	DataVersion     string      `json:"data_version,omitempty"`
	// SkipActivate leaves the new model inactive.
	SkipActivate bool `json:"skip_activate,omitempty"`
}

type TrainResult struct {
	Model   *types.TrainedModel   `json:"model"`
	Metrics types.TrainingMetrics `json:"metrics"`
	Rows    int                   `json:"rows"`
	Dropped int                   `json:"dropped_rows"`
}

type TrainingService interface {
	Train(ctx context.Context, req TrainRequest) (*TrainResult, error)
}

type trainingService struct {
	db       *gorm.DB
	log      *logger.Logger
	obs      repos.ObservationRepo
	models   repos.TrainedModelRepo
	registry ModelRegistry
	store    artifacts.Store
	metrics  *observability.Metrics
	defaults TrainingDefaults
	now      func() time.Time
}

// TrainingDefaults fill in what a request leaves out. Hyperparameters sit
// beneath the request's own.
type TrainingDefaults struct {
	Algorithm       string
	Hyperparameters ml.Params
}

func NewTrainingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	obs repos.ObservationRepo,
	models repos.TrainedModelRepo,
	registry ModelRegistry,
	store artifacts.Store,
	metrics *observability.Metrics,
	defaults TrainingDefaults,
) TrainingService {
	return &trainingService{
		db:       db,
		log:      baseLog.With("service", "TrainingService"),
		obs:      obs,
		models:   models,
		registry: registry,
		store:    store,
		metrics:  metrics,
		defaults: defaults,
		now:      time.Now,
	}
}

func (s *trainingService) Train(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, apperrors.Validation("data_date_from %s is after data_date_to %s", *req.From, *req.To)
	}
	now := s.now().UTC()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "demand_forecast_" + now.Format("20060102_150405")
	}
	if err := artifacts.ValidateName(name); err != nil {
		return nil, apperrors.Validation("model_name %q must use letters, digits, '_', '.' or '-'", name)
	}
	dataVersion := strings.TrimSpace(req.DataVersion)
	if dataVersion == "" {
		dataVersion = "latest"
	}
	params := ml.Params{}
	for k, v := range s.defaults.Hyperparameters {
		params[k] = v
	}
	for k, v := range req.Hyperparameters {
		params[k] = v
	}
	algo := req.Algorithm
	if strings.TrimSpace(algo) == "" {
		algo = s.defaults.Algorithm
	}
	reg, err := ml.New(algo, params)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	algorithm := reg.Algorithm()
	fail := func(err error) (*TrainResult, error) {
		s.metrics.ObserveTraining(algorithm, "failed", 0)
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "forecast.train")
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}
	obs, err := s.obs.ListRange(dbc, req.From, req.To)
	if err != nil {
		return fail(fmt.Errorf("load observations: %w", err))
	}
	if len(obs) == 0 {
		return fail(apperrors.Validation("no data available for training"))
	}
	s.log.Info("Training started", "model", name, "algorithm", algorithm, "observations", len(obs))

	ts, err := features.BuildTrainingSet(features.KeyedFromObservations(obs), features.DefaultSchema)
	if err != nil {
		return fail(apperrors.Validation("build training set: %v", err))
	}
	if len(ts.Rows) < 2 {
		return fail(apperrors.Validation("not enough history: %d usable rows after dropping %d", len(ts.Rows), ts.Dropped))
	}
	X, y := ts.Matrix()
	cut := ml.ChronoSplit(len(X), testFraction)
	Xtr, ytr, Xte, yte := X[:cut], y[:cut], X[cut:], y[cut:]

	if err := reg.Fit(Xtr, ytr); err != nil {
		return fail(fmt.Errorf("fit: %w", err))
	}
	trainPred, err := reg.Predict(Xtr)
	if err != nil {
		return fail(fmt.Errorf("score train split: %w", err))
	}
	testPred, err := reg.Predict(Xte)
	if err != nil {
		return fail(fmt.Errorf("score test split: %w", err))
	}
	metrics := types.TrainingMetrics{
		TrainMAE:     ml.MAE(ytr, trainPred),
		TestMAE:      ml.MAE(yte, testPred),
		TrainRMSE:    ml.RMSE(ytr, trainPred),
		TestRMSE:     ml.RMSE(yte, testPred),
		TrainMAPE:    ml.MAPE(ytr, trainPred),
		TestMAPE:     ml.MAPE(yte, testPred),
		TrainSamples: len(Xtr),
		TestSamples:  len(Xte),
	}

	version, err := s.models.NextVersion(dbc, name)
	if err != nil {
		return fail(fmt.Errorf("next version: %w", err))
	}
	merged, _ := ml.Defaults(algorithm, params)
	bundle, err := artifacts.NewBundle(name, version, reg, merged, ts.Schema, ts.Encoders, now)
	if err != nil {
		return fail(err)
	}
	location, err := s.store.Save(ctx, artifacts.Key(name, version), bundle)
	if err != nil {
		return fail(fmt.Errorf("save artifact: %w", err))
	}

	row := &types.TrainedModel{
		ID:                  uuid.New(),
		Name:                name,
		Version:             version,
		Algorithm:           algorithm,
		Hyperparameters:     mustJSON(merged),
		Metrics:             mustJSON(metrics),
		Encoders:            mustJSON(ts.Encoders),
		FeatureSchema:       mustJSON(ts.Schema),
		ArtifactPath:        location,
		TrainingDataVersion: dataVersion,
		TrainedAt:           now,
	}
	if err := s.models.Create(dbc, row); err != nil {
		return fail(fmt.Errorf("record model: %w", err))
	}
	if !req.SkipActivate {
		active, err := s.registry.Activate(ctx, row.ID)
		if err != nil {
			return fail(err)
		}
		row = active
	}
	s.metrics.ObserveTraining(algorithm, "succeeded", metrics.TestMAPE)
	s.log.Info("Training finished",
		"model_id", row.ID, "model", name, "version", version,
		"test_mae", metrics.TestMAE, "test_rmse", metrics.TestRMSE, "test_mape", metrics.TestMAPE,
		"rows", len(ts.Rows), "dropped", ts.Dropped,
	)
	return &TrainResult{Model: row, Metrics: metrics, Rows: len(ts.Rows), Dropped: ts.Dropped}, nil
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}
