package testutil

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
)

func SeedStore(tb testing.TB, db *gorm.DB, code string) *types.Store {
	tb.Helper()
	s := &types.Store{StoreCode: code, Name: "Store " + code, IsActive: true}
	if err := db.Create(s).Error; err != nil {
		tb.Fatalf("seed store: %v", err)
	}
	return s
}

func SeedProduct(tb testing.TB, db *gorm.DB, sku string) *types.Product {
	tb.Helper()
	p := &types.Product{SKU: sku, Name: "Product " + sku, IsActive: true}
	if err := db.Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedSeries writes one observation per day starting at start, one per sales value.
func SeedSeries(tb testing.TB, db *gorm.DB, store, sku string, start civil.Date, sales []float64, price float64, onHand int) []*types.Observation {
	tb.Helper()
	rows := make([]*types.Observation, 0, len(sales))
	for i, s := range sales {
		rows = append(rows, &types.Observation{
			StoreID: store,
			SKU:     sku,
			Date:    civildate.ToTime(start.AddDays(i)),
			Sales:   decimal.NewFromFloat(s),
			Price:   decimal.NewFromFloat(price),
			OnHand:  onHand,
		})
	}
	if len(rows) == 0 {
		return rows
	}
	if err := db.Create(&rows).Error; err != nil {
		tb.Fatalf("seed series: %v", err)
	}
	return rows
}

func SeedModel(tb testing.TB, db *gorm.DB, name string, version int, active bool) *types.TrainedModel {
	tb.Helper()
	m := &types.TrainedModel{
		Name:            name,
		Version:         version,
		Algorithm:       "gradient_boosting",
		Hyperparameters: datatypes.JSON([]byte("{}")),
		Metrics:         datatypes.JSON([]byte("{}")),
		Encoders:        datatypes.JSON([]byte("{}")),
		FeatureSchema:   datatypes.JSON([]byte("{}")),
		ArtifactPath:    "/nonexistent/" + name,
		IsActive:        active,
		TrainedAt:       time.Now().UTC().Add(time.Duration(version) * time.Second),
	}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("seed model: %v", err)
	}
	return m
}
