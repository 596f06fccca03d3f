package sales

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
)

// Observation is one day of sales history for a (store, product) pair.
// (store_id, sku_id, date) is unique; writes are upserts by that key.
type Observation struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID       string          `gorm:"column:store_id;not null;uniqueIndex:idx_observation_key,priority:1;index:idx_observation_series,priority:1" json:"store_id"`
	SKU           string          `gorm:"column:sku_id;not null;uniqueIndex:idx_observation_key,priority:2;index:idx_observation_series,priority:2" json:"sku_id"`
	Date          time.Time       `gorm:"column:date;type:date;not null;uniqueIndex:idx_observation_key,priority:3;index:idx_observation_series,priority:3;index" json:"date"`
	Sales         decimal.Decimal `gorm:"column:sales;type:numeric(10,2);not null" json:"sales"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(8,2);not null" json:"price"`
	OnHand        int             `gorm:"column:on_hand;not null" json:"on_hand"`
	PromotionFlag bool            `gorm:"column:promotions_flag;not null" json:"promotions_flag"`
	UploadID      *uuid.UUID      `gorm:"type:uuid;column:upload_id;index" json:"upload_id,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Observation) TableName() string { return "sales_observation" }

func (o *Observation) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Day is the civil date of the observation.
func (o *Observation) Day() civil.Date { return civildate.FromTime(o.Date) }

// SalesFloat and PriceFloat feed the numeric feature pipeline.
func (o *Observation) SalesFloat() float64 { return o.Sales.InexactFloat64() }
func (o *Observation) PriceFloat() float64 { return o.Price.InexactFloat64() }
