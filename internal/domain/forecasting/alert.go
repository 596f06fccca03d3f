package forecasting

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AlertStockoutRisk  = "stockout_risk"
	AlertOverstockRisk = "overstock_risk"
	AlertDemandSpike   = "demand_spike"
	AlertTrendChange   = "trend_change"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Alert is an inventory alert raised from a fresh prediction. A partial unique
// index keeps at most one unacknowledged alert per (store, sku, alert_type).
type Alert struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID               string     `gorm:"column:store_id;not null;uniqueIndex:idx_alert_open,priority:1,where:is_acknowledged = false" json:"store_id"`
	SKU                   string     `gorm:"column:sku_id;not null;uniqueIndex:idx_alert_open,priority:2" json:"sku_id"`
	AlertType             string     `gorm:"column:alert_type;not null;uniqueIndex:idx_alert_open,priority:3;index:idx_alert_type_priority,priority:1" json:"alert_type"`
	Priority              string     `gorm:"column:priority;not null;index:idx_alert_type_priority,priority:2" json:"priority"`
	Message               string     `gorm:"column:message;not null" json:"message"`
	PredictedStockoutDate *time.Time `gorm:"column:predicted_stockout_date;type:date" json:"predicted_stockout_date,omitempty"`
	CurrentInventory      *int       `gorm:"column:current_inventory" json:"current_inventory,omitempty"`
	RecommendedAction     string     `gorm:"column:recommended_action" json:"recommended_action,omitempty"`
	RecommendedQuantity   *int       `gorm:"column:recommended_quantity" json:"recommended_quantity,omitempty"`
	IsAcknowledged        bool       `gorm:"column:is_acknowledged;not null;index" json:"is_acknowledged"`
	AcknowledgedBy        string     `gorm:"column:acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt        *time.Time `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt             time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Alert) TableName() string { return "inventory_alert" }

func (a *Alert) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
