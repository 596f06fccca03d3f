package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is a retail location. StoreCode is the business identifier used by
// uploads and APIs ("store_id" on the wire).
type Store struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoreCode string    `gorm:"column:store_id;not null;uniqueIndex" json:"store_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Location  string    `gorm:"column:location" json:"location,omitempty"`
	IsActive  bool      `gorm:"column:is_active;not null;index" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Store) TableName() string { return "store" }

func (s *Store) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Product is a SKU.
type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SKU       string    `gorm:"column:sku_id;not null;uniqueIndex" json:"sku_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Category  string    `gorm:"column:category" json:"category,omitempty"`
	Brand     string    `gorm:"column:brand" json:"brand,omitempty"`
	IsActive  bool      `gorm:"column:is_active;not null;index" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string { return "product" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
