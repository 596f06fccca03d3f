package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/smartinventory-backend/internal/http/handlers"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Forecast *httpH.ForecastHandler
	Model    *httpH.ModelHandler
	Upload   *httpH.UploadHandler
	Alert    *httpH.AlertHandler
	Job      *httpH.JobHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Forecast: httpH.NewForecastHandler(log, services.Prediction, services.Batches),
		Model:    httpH.NewModelHandler(log, services.Registry, services.JobService, services.Health),
		Upload:   httpH.NewUploadHandler(log, services.Import, services.JobService, cfg.UploadMaxBytes),
		Alert:    httpH.NewAlertHandler(services.Alerts),
		Job:      httpH.NewJobHandler(services.JobService),
	}
}
