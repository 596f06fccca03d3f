package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/smartinventory-backend/internal/http"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.ServiceName,
		CORSOrigins:     cfg.CORSOrigins,
		Tracing:         envutil.Bool("OTEL_ENABLED", false),
		HealthHandler:   handlers.Health,
		ForecastHandler: handlers.Forecast,
		ModelHandler:    handlers.Model,
		UploadHandler:   handlers.Upload,
		AlertHandler:    handlers.Alert,
		JobHandler:      handlers.Job,
	})
}
