package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/db"
	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	apphttp "github.com/yungbote/smartinventory-backend/internal/http"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    *repos.Set
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New connects to every configured backend and wires the full graph. The CLI
// uses the same graph without starting the server or worker.
func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(theDB, log, cfg, serviceset)
	router := wireRouter(log, cfg, handlerset, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops: job worker, remote model events and
// metrics collectors.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	startModelEvents(ctx, a.Log, a.Clients.ModelBus, a.Services.Registry)
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}
	if a.Metrics != nil {
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB)
		if a.Clients.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
		}
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Starting HTTP server", "addr", a.Cfg.HTTPAddr)
	srv := &apphttp.Server{Engine: a.Router}
	return srv.Run(ctx, a.Cfg.HTTPAddr, a.Cfg.ShutdownGrace)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
