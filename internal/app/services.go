package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/artifacts"
	redisbus "github.com/yungbote/smartinventory-backend/internal/clients/redis"
	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/jobs/pipeline/batch_predict"
	"github.com/yungbote/smartinventory-backend/internal/jobs/pipeline/inventory_alerts"
	"github.com/yungbote/smartinventory-backend/internal/jobs/pipeline/model_train"
	"github.com/yungbote/smartinventory-backend/internal/jobs/pipeline/sales_import"
	jobruntime "github.com/yungbote/smartinventory-backend/internal/jobs/runtime"
	"github.com/yungbote/smartinventory-backend/internal/jobs/worker"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

type Services struct {
	// Models + predictions
	Registry   services.ModelRegistry
	Cache      services.PredictionCache
	Prediction services.PredictionService
	Training   services.TrainingService
	Health     services.ModelHealthService

	// Batches + alerts
	Batches services.BatchService
	Alerts  services.AlertEngine

	// Sales data
	Import services.SalesImportService

	// Jobs
	JobService  services.JobService
	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker

	Artifacts *artifacts.Router
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, rs *repos.Set, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	store, err := resolveArtifactStore(log, cfg, clients.Bucket)
	if err != nil {
		return Services{}, err
	}

	registry := services.NewModelRegistry(db, log, rs.Models, store, clients.ModelBus, metrics, services.ModelRegistryOptions{
		CacheTTL:    cfg.ModelCacheTTL,
		LoadTimeout: cfg.ArtifactTimeout,
	})

	var cache services.PredictionCache
	if clients.Redis != nil {
		cache = services.NewRedisPredictionCache(log, clients.Redis, cfg.PredictionCacheTTL)
	} else {
		cache = services.NewMemoryPredictionCache(cfg.PredictionCacheTTL, cfg.PredictionCacheMax)
	}
	prediction := services.NewPredictionService(db, log, registry, rs.Observations, cache, metrics, services.PredictionServiceOptions{
		HistoryDays: cfg.HistoryDays,
		Confidence:  cfg.Confidence,
	})

	training := services.NewTrainingService(db, log, rs.Observations, rs.Models, registry, store, metrics, services.TrainingDefaults{
		Algorithm:       cfg.Algorithm,
		Hyperparameters: cfg.Hyperparameters,
	})

	var publisher services.AlertPublisher = services.NopAlertPublisher{}
	if clients.Kafka != nil {
		publisher = services.NewKafkaAlertPublisher(log, clients.Kafka, cfg.AlertTopic)
	}
	alerts := services.NewAlertEngine(db, log, rs.Models, rs.Predictions, rs.Observations, rs.Alerts, publisher, metrics, cfg.Alerts)

	jobService := services.NewJobService(db, log, rs.JobRuns, rs.BatchJobs)
	batches := services.NewBatchService(db, log, rs.BatchJobs, rs.Models, jobService)
	health := services.NewModelHealthService(db, log, rs.Models, rs.Predictions, jobService, cfg.Health)
	importer := services.NewSalesImportService(db, log, rs, metrics, cfg.UploadDir)

	// Job registry
	jobRegistry := jobruntime.NewRegistry()
	for _, h := range []jobruntime.Handler{
		batch_predict.New(db, log, rs, registry, prediction, jobService, metrics, cfg.Batch),
		inventory_alerts.New(db, log, alerts),
		model_train.New(db, log, training),
		sales_import.New(db, log, importer),
	} {
		if err := jobRegistry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register %s: %w", h.Type(), err)
		}
	}

	var jobWorker *worker.Worker
	if cfg.RunWorker {
		jobWorker = worker.NewWorker(db, log, rs.JobRuns, jobRegistry, metrics)
	}

	return Services{
		Registry:    registry,
		Cache:       cache,
		Prediction:  prediction,
		Training:    training,
		Health:      health,
		Batches:     batches,
		Alerts:      alerts,
		Import:      importer,
		JobService:  jobService,
		JobRegistry: jobRegistry,
		JobWorker:   jobWorker,
		Artifacts:   store,
	}, nil
}

// startModelEvents applies activations made by other processes to the local
// registry, which in turn purges the prediction cache.
func startModelEvents(ctx context.Context, log *logger.Logger, bus redisbus.ModelBus, registry services.ModelRegistry) {
	if bus == nil {
		return
	}
	if err := bus.StartForwarder(ctx, func(ev redisbus.ModelEvent) {
		log.Debug("Remote model event", "kind", ev.Kind, "model_id", ev.ModelID)
		services.HandleRemoteModelEvent(registry, ev)
	}); err != nil {
		log.Warn("Model event forwarder not started", "error", err)
	}
}
