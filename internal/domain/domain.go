package domain

import (
	"github.com/yungbote/smartinventory-backend/internal/domain/catalog"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	"github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/domain/sales"
)

type Store = catalog.Store
type Product = catalog.Product

type Observation = sales.Observation
type DataUpload = sales.DataUpload
type DataValidationError = sales.DataValidationError

type TrainedModel = forecasting.TrainedModel
type TrainingMetrics = forecasting.TrainingMetrics
type Prediction = forecasting.Prediction
type BatchJob = forecasting.BatchJob
type Alert = forecasting.Alert

type JobRun = jobs.JobRun

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Store{},
		&Product{},
		&Observation{},
		&DataUpload{},
		&DataValidationError{},
		&TrainedModel{},
		&Prediction{},
		&BatchJob{},
		&Alert{},
		&JobRun{},
	}
}
