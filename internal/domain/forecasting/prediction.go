package forecasting

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
)

// Prediction is a persisted point forecast. Unique per (model, store, sku, date);
// inserts use ignore-on-conflict so the first write wins.
type Prediction struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ModelID         uuid.UUID `gorm:"type:uuid;column:model_id;not null;uniqueIndex:idx_prediction_key,priority:1" json:"model_id"`
	StoreID         string    `gorm:"column:store_id;not null;uniqueIndex:idx_prediction_key,priority:2;index:idx_prediction_series,priority:1" json:"store_id"`
	SKU             string    `gorm:"column:sku_id;not null;uniqueIndex:idx_prediction_key,priority:3;index:idx_prediction_series,priority:2" json:"sku_id"`
	TargetDate      time.Time `gorm:"column:prediction_date;type:date;not null;uniqueIndex:idx_prediction_key,priority:4;index" json:"prediction_date"`
	PredictedDemand float64   `gorm:"column:predicted_demand;not null" json:"predicted_demand"`
	ConfidenceLower float64   `gorm:"column:confidence_interval_lower" json:"confidence_interval_lower"`
	ConfidenceUpper float64   `gorm:"column:confidence_interval_upper" json:"confidence_interval_upper"`
	ActualDemand    *float64  `gorm:"column:actual_demand" json:"actual_demand,omitempty"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Prediction) TableName() string { return "forecast_prediction" }

func (p *Prediction) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Prediction) Day() civil.Date { return civildate.FromTime(p.TargetDate) }
