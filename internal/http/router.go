package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/smartinventory-backend/internal/http/handlers"
	httpMW "github.com/yungbote/smartinventory-backend/internal/http/middleware"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string
	Tracing     bool

	ForecastHandler *httpH.ForecastHandler
	ModelHandler    *httpH.ModelHandler
	UploadHandler   *httpH.UploadHandler
	AlertHandler    *httpH.AlertHandler
	JobHandler      *httpH.JobHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log, "/healthcheck", "/metrics"))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Forecasts
		if cfg.ForecastHandler != nil {
			api.GET("/forecast/predict", cfg.ForecastHandler.Predict)
			api.POST("/forecast/batch", cfg.ForecastHandler.SubmitBatch)
			api.GET("/forecast/batch", cfg.ForecastHandler.ListBatches)
			api.GET("/forecast/batch/:id", cfg.ForecastHandler.GetBatch)
			api.POST("/forecast/batch/:id/cancel", cfg.ForecastHandler.CancelBatch)
		}

		// Models
		if cfg.ModelHandler != nil {
			api.POST("/models/train", cfg.ModelHandler.Train)
			api.GET("/models", cfg.ModelHandler.List)
			api.POST("/models/:id/activate", cfg.ModelHandler.Activate)
			api.POST("/models/health", cfg.ModelHandler.Health)
		}

		// Sales uploads
		if cfg.UploadHandler != nil {
			api.POST("/uploads", cfg.UploadHandler.Create)
			api.GET("/uploads/:id", cfg.UploadHandler.Get)
		}

		// Alerts
		if cfg.AlertHandler != nil {
			api.GET("/alerts", cfg.AlertHandler.List)
			api.POST("/alerts/:id/acknowledge", cfg.AlertHandler.Acknowledge)
		}

		// Jobs
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
			api.POST("/jobs/:id/restart", cfg.JobHandler.RestartJob)
		}
	}

	return r
}
