package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos/catalog"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/forecasting"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/jobs"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/sales"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type StoreRepo = catalog.StoreRepo
type ProductRepo = catalog.ProductRepo

type ObservationRepo = sales.ObservationRepo
type DataUploadRepo = sales.DataUploadRepo
type ValidationErrorRepo = sales.ValidationErrorRepo

type TrainedModelRepo = forecasting.TrainedModelRepo
type PredictionRepo = forecasting.PredictionRepo
type BatchJobRepo = forecasting.BatchJobRepo
type AlertRepo = forecasting.AlertRepo
type AlertFilter = forecasting.AlertFilter

type JobRunRepo = jobs.JobRunRepo

func NewStoreRepo(db *gorm.DB, baseLog *logger.Logger) StoreRepo {
	return catalog.NewStoreRepo(db, baseLog)
}
func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return catalog.NewProductRepo(db, baseLog)
}

func NewObservationRepo(db *gorm.DB, baseLog *logger.Logger) ObservationRepo {
	return sales.NewObservationRepo(db, baseLog)
}
func NewDataUploadRepo(db *gorm.DB, baseLog *logger.Logger) DataUploadRepo {
	return sales.NewDataUploadRepo(db, baseLog)
}
func NewValidationErrorRepo(db *gorm.DB, baseLog *logger.Logger) ValidationErrorRepo {
	return sales.NewValidationErrorRepo(db, baseLog)
}

func NewTrainedModelRepo(db *gorm.DB, baseLog *logger.Logger) TrainedModelRepo {
	return forecasting.NewTrainedModelRepo(db, baseLog)
}
func NewPredictionRepo(db *gorm.DB, baseLog *logger.Logger) PredictionRepo {
	return forecasting.NewPredictionRepo(db, baseLog)
}
func NewBatchJobRepo(db *gorm.DB, baseLog *logger.Logger) BatchJobRepo {
	return forecasting.NewBatchJobRepo(db, baseLog)
}
func NewAlertRepo(db *gorm.DB, baseLog *logger.Logger) AlertRepo {
	return forecasting.NewAlertRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}

// Set is every repo the application wires.
type Set struct {
	Stores           StoreRepo
	Products         ProductRepo
	Observations     ObservationRepo
	Uploads          DataUploadRepo
	ValidationErrors ValidationErrorRepo
	Models           TrainedModelRepo
	Predictions      PredictionRepo
	BatchJobs        BatchJobRepo
	Alerts           AlertRepo
	JobRuns          JobRunRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) *Set {
	return &Set{
		Stores:           NewStoreRepo(db, baseLog),
		Products:         NewProductRepo(db, baseLog),
		Observations:     NewObservationRepo(db, baseLog),
		Uploads:          NewDataUploadRepo(db, baseLog),
		ValidationErrors: NewValidationErrorRepo(db, baseLog),
		Models:           NewTrainedModelRepo(db, baseLog),
		Predictions:      NewPredictionRepo(db, baseLog),
		BatchJobs:        NewBatchJobRepo(db, baseLog),
		Alerts:           NewAlertRepo(db, baseLog),
		JobRuns:          NewJobRunRepo(db, baseLog),
	}
}
