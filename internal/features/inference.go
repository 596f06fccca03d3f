package features

import (
	"cloud.google.com/go/civil"

	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
)

// Inference is a single-point feature vector plus what the builder had to guess.
type Inference struct {
	Vector         Vector
	UnknownStore   bool
	UnknownProduct bool
	// OnHand is the most recent on-hand count in the window.
	OnHand int
	// History is the number of observations the vector was built from.
	History int
}

// PrepareForInference builds the vector for (storeID, sku) at target from
// window. Only points dated on or before target are used. The second return is
// false when no such point exists.
//
// Missing history degrades rather than fails: a lag the window cannot reach
// falls back to the most recent sale, rolling means shrink to the points
// available, unknown categories encode as 0, and promotions are assumed off.
func PrepareForInference(enc *Encoders, schema Schema, storeID, sku string, target civil.Date, window []Point) (Inference, bool) {
	pts := make([]Point, 0, len(window))
	for _, p := range window {
		if !p.Date.After(target) {
			pts = append(pts, p)
		}
	}
	if len(pts) == 0 {
		return Inference{}, false
	}
	sortPoints(pts)

	n := len(pts)
	salesSeries := make([]float64, n)
	priceSeries := make([]float64, n)
	for i, p := range pts {
		salesSeries[i] = p.Sales
		priceSeries[i] = p.Price
	}
	last := pts[n-1]

	var storeCode, skuCode int
	knownStore, knownSKU := false, false
	if enc != nil {
		storeCode, knownStore = enc.Store.Transform(storeID)
		skuCode, knownSKU = enc.Product.Transform(sku)
	}

	lag := func(k int) float64 {
		if n >= k {
			return salesSeries[n-k]
		}
		return salesSeries[n-1]
	}
	trailing := func(xs []float64, w int) float64 {
		if w > len(xs) {
			w = len(xs)
		}
		return mean(xs[len(xs)-w:])
	}
	prevPrice := last.Price
	if n > 1 {
		prevPrice = priceSeries[n-2]
	}

	value := func(name string) float64 {
		switch name {
		case StoreEncoded:
			return float64(storeCode)
		case SKUEncoded:
			return float64(skuCode)
		case DayOfWeek:
			return float64(civildate.Weekday(target))
		case Month:
			return float64(target.Month)
		case DayOfMonth:
			return float64(target.Day)
		case Quarter:
			return float64(civildate.Quarter(target))
		case Price:
			return last.Price
		case PriceChange:
			return pctChange(last.Price, prevPrice)
		case PriceRolling7:
			return trailing(priceSeries, 7)
		case OnHand:
			return float64(last.OnHand)
		case InventoryRatio:
			return lag(1) / (float64(max(last.OnHand, 0)) + 1)
		case Promotion:
			return 0
		case SalesLag1:
			return lag(1)
		case SalesLag7:
			return lag(7)
		case SalesLag14:
			return lag(14)
		case SalesLag30:
			return lag(30)
		case SalesRolling7:
			return trailing(salesSeries, 7)
		case SalesRolling14:
			return trailing(salesSeries, 14)
		case SalesRolling30:
			return trailing(salesSeries, 30)
		}
		return 0
	}

	vec := make(Vector, schema.Len())
	for i, name := range schema.Names {
		vec[i] = finite(value(name))
	}
	return Inference{
		Vector:         vec,
		UnknownStore:   !knownStore,
		UnknownProduct: !knownSKU,
		OnHand:         last.OnHand,
		History:        n,
	}, true
}
