package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

const (
	HealthNoModel    = "no_model"
	HealthHealthy    = "healthy"
	HealthRetraining = "retraining_triggered"
)

type HealthOptions struct {
	MaxAge time.Duration
	// MAPEThreshold is in percent.
	MAPEThreshold float64
	Window        time.Duration
}

type HealthReport struct {
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	ModelID      *uuid.UUID `json:"model_id,omitempty"`
	ModelName    string     `json:"model_name,omitempty"`
	AgeDays      int        `json:"model_age_days"`
	MAPE         *float64   `json:"recent_mape,omitempty"`
	Evaluated    int        `json:"evaluated_predictions"`
	RetrainJobID *uuid.UUID `json:"retrain_job_id,omitempty"`
}

type ModelHealthService interface {
	Check(ctx context.Context) (*HealthReport, error)
}

type modelHealthService struct {
	db     *gorm.DB
	log    *logger.Logger
	models repos.TrainedModelRepo
	preds  repos.PredictionRepo
	jobs   JobService
	opts   HealthOptions
	now    func() time.Time
}

func NewModelHealthService(db *gorm.DB, baseLog *logger.Logger, models repos.TrainedModelRepo, preds repos.PredictionRepo, jobs JobService, opts HealthOptions) ModelHealthService {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 30 * 24 * time.Hour
	}
	if opts.MAPEThreshold <= 0 {
		opts.MAPEThreshold = 15
	}
	if opts.Window <= 0 {
		opts.Window = 7 * 24 * time.Hour
	}
	return &modelHealthService{
		db:     db,
		log:    baseLog.With("service", "ModelHealthService"),
		models: models,
		preds:  preds,
		jobs:   jobs,
		opts:   opts,
		now:    time.Now,
	}
}

func (s *modelHealthService) Check(ctx context.Context) (*HealthReport, error) {
	dbc := dbctx.Context{Ctx: ctx}
	active, err := s.models.GetActive(dbc)
	if err != nil {
		return nil, fmt.Errorf("get active model: %w", err)
	}
	if active == nil {
		return &HealthReport{Status: HealthNoModel}, nil
	}
	now := s.now().UTC()
	id := active.ID
	rep := &HealthReport{
		Status:    HealthHealthy,
		ModelID:   &id,
		ModelName: active.Name,
		AgeDays:   int(now.Sub(active.TrainedAt) / (24 * time.Hour)),
	}
	if now.Sub(active.TrainedAt) > s.opts.MaxAge {
		return s.retrain(ctx, rep, "model_age")
	}

	evaluated, err := s.preds.ListEvaluated(dbc, active.ID, now.Add(-s.opts.Window))
	if err != nil {
		return nil, fmt.Errorf("list evaluated predictions: %w", err)
	}
	var absErr, actual float64
	for _, p := range evaluated {
		if p.ActualDemand == nil {
			continue
		}
		rep.Evaluated++
		absErr += math.Abs(p.PredictedDemand - *p.ActualDemand)
		actual += *p.ActualDemand
	}
	if rep.Evaluated == 0 {
		return rep, nil
	}
	mape := absErr / math.Max(actual, 1e-8) * 100
	rep.MAPE = &mape
	if mape > s.opts.MAPEThreshold {
		return s.retrain(ctx, rep, "accuracy")
	}
	return rep, nil
}

func (s *modelHealthService) retrain(ctx context.Context, rep *HealthReport, reason string) (*HealthReport, error) {
	rep.Status = HealthRetraining
	rep.Reason = reason
	job, created, err := s.jobs.EnqueueIfIdle(dbctx.Context{Ctx: ctx}, jobstatus.TypeModelTrain, "", nil, "health_check", map[string]any{
		"trigger": reason,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue retrain: %w", err)
	}
	if created {
		rep.RetrainJobID = &job.ID
	}
	s.log.Info("Retraining requested", "model_id", rep.ModelID, "reason", reason, "queued", created)
	return rep, nil
}
