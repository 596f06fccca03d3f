// Package features turns sales history into the numeric vectors the
// regressor consumes. Training and inference share one Schema so a model only
// ever sees the columns, in the order, it was fitted on.
package features

import (
	"fmt"
	"strings"
)

const (
	StoreEncoded   = "store_id_encoded"
	SKUEncoded     = "sku_id_encoded"
	DayOfWeek      = "day_of_week"
	Month          = "month"
	DayOfMonth     = "day_of_month"
	Quarter        = "quarter"
	Price          = "price"
	PriceChange    = "price_change"
	PriceRolling7  = "price_rolling_7"
	OnHand         = "on_hand"
	InventoryRatio = "inventory_ratio"
	Promotion      = "promotions_flag"
	SalesLag1      = "sales_lag_1"
	SalesLag7      = "sales_lag_7"
	SalesLag14     = "sales_lag_14"
	SalesLag30     = "sales_lag_30"
	SalesRolling7  = "sales_rolling_7"
	SalesRolling14 = "sales_rolling_14"
	SalesRolling30 = "sales_rolling_30"
)

// Lags and RollingWindows are measured in observations, not calendar days.
var (
	Lags           = []int{1, 7, 14, 30}
	RollingWindows = []int{7, 14, 30}
)

// Schema is the ordered list of feature names a model was trained on.
// The order is the column order of every Vector built against it.
type Schema struct {
	Version int      `json:"version"`
	Names   []string `json:"names"`
}

var DefaultSchema = Schema{
	Version: 1,
	Names: []string{
		StoreEncoded, SKUEncoded,
		DayOfWeek, Month, DayOfMonth, Quarter,
		Price, PriceChange, PriceRolling7,
		OnHand, InventoryRatio,
		Promotion,
		SalesLag1, SalesLag7, SalesLag14, SalesLag30,
		SalesRolling7, SalesRolling14, SalesRolling30,
	},
}

var known = func() map[string]struct{} {
	m := make(map[string]struct{}, len(DefaultSchema.Names))
	for _, n := range DefaultSchema.Names {
		m[n] = struct{}{}
	}
	return m
}()

func (s Schema) Len() int { return len(s.Names) }

// Index returns the column of name, or -1.
func (s Schema) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Validate rejects empty schemas, duplicates and names this package cannot compute.
func (s Schema) Validate() error {
	if s.Version <= 0 {
		return fmt.Errorf("feature schema version must be positive, got %d", s.Version)
	}
	if len(s.Names) == 0 {
		return fmt.Errorf("feature schema is empty")
	}
	seen := make(map[string]struct{}, len(s.Names))
	for _, n := range s.Names {
		if _, ok := known[n]; !ok {
			return fmt.Errorf("unknown feature %q", n)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("duplicate feature %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

func (s Schema) String() string {
	return fmt.Sprintf("v%d[%s]", s.Version, strings.Join(s.Names, ","))
}

// Vector is one row of features ordered by a Schema.
type Vector []float64
