package features

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
)

// Row is one training sample.
type Row struct {
	StoreID string
	SKU     string
	Date    civil.Date
	X       Vector
	Y       float64
}

type TrainingSet struct {
	Schema   Schema
	Encoders *Encoders
	Rows     []Row
	// Dropped counts observations discarded for missing lag or rolling history.
	Dropped int
}

func (ts *TrainingSet) Matrix() ([][]float64, []float64) {
	X := make([][]float64, len(ts.Rows))
	y := make([]float64, len(ts.Rows))
	for i, r := range ts.Rows {
		X[i] = r.X
		y[i] = r.Y
	}
	return X, y
}

// BuildTrainingSet fits fresh encoders on obs and emits one row per observation
// whose history covers every feature in schema. Rows lacking history are
// dropped, never filled. Output is ordered by date, then store, then sku.
func BuildTrainingSet(obs []Keyed, schema Schema) (*TrainingSet, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("no observations")
	}

	stores := make([]string, 0, len(obs))
	skus := make([]string, 0, len(obs))
	groups := map[[2]string][]Point{}
	for _, o := range obs {
		stores = append(stores, o.StoreID)
		skus = append(skus, o.SKU)
		k := [2]string{o.StoreID, o.SKU}
		groups[k] = append(groups[k], o.Point)
	}
	enc := &Encoders{Store: FitLabelEncoder(stores), Product: FitLabelEncoder(skus)}
	enc.Warm()

	ts := &TrainingSet{Schema: schema, Encoders: enc}
	for key, pts := range groups {
		sortPoints(pts)
		storeCode, _ := enc.Store.Transform(key[0])
		skuCode, _ := enc.Product.Transform(key[1])

		salesSeries := make([]float64, len(pts))
		priceSeries := make([]float64, len(pts))
		for i, p := range pts {
			salesSeries[i] = p.Sales
			priceSeries[i] = p.Price
		}

		for i, p := range pts {
			vals := trainingValues(i, p, salesSeries, priceSeries, storeCode, skuCode)
			x := make(Vector, schema.Len())
			ok := true
			for j, name := range schema.Names {
				v, have := vals(name)
				if !have {
					ok = false
					break
				}
				x[j] = v
			}
			if !ok {
				ts.Dropped++
				continue
			}
			ts.Rows = append(ts.Rows, Row{StoreID: key[0], SKU: key[1], Date: p.Date, X: x, Y: p.Sales})
		}
	}

	sort.SliceStable(ts.Rows, func(i, j int) bool {
		a, b := ts.Rows[i], ts.Rows[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.SKU < b.SKU
	})
	return ts, nil
}

// trainingValues resolves features for row i of one series. A false second
// return means the value needs history the series does not have.
func trainingValues(i int, p Point, salesSeries, priceSeries []float64, storeCode, skuCode int) func(string) (float64, bool) {
	lag := func(k int) (float64, bool) {
		if i-k < 0 {
			return 0, false
		}
		return salesSeries[i-k], true
	}
	rolling := func(xs []float64, w int) (float64, bool) {
		if i+1 < w {
			return 0, false
		}
		return mean(xs[i-w+1 : i+1]), true
	}
	return func(name string) (float64, bool) {
		switch name {
		case StoreEncoded:
			return float64(storeCode), true
		case SKUEncoded:
			return float64(skuCode), true
		case DayOfWeek:
			return float64(civildate.Weekday(p.Date)), true
		case Month:
			return float64(p.Date.Month), true
		case DayOfMonth:
			return float64(p.Date.Day), true
		case Quarter:
			return float64(civildate.Quarter(p.Date)), true
		case Price:
			return p.Price, true
		case PriceChange:
			if i == 0 {
				return 0, false
			}
			return finite(pctChange(priceSeries[i], priceSeries[i-1])), true
		case PriceRolling7:
			return rolling(priceSeries, 7)
		case OnHand:
			return float64(p.OnHand), true
		case InventoryRatio:
			return finite(p.Sales / (float64(p.OnHand) + 1)), true
		case Promotion:
			return boolf(p.Promotion), true
		case SalesLag1:
			return lag(1)
		case SalesLag7:
			return lag(7)
		case SalesLag14:
			return lag(14)
		case SalesLag30:
			return lag(30)
		case SalesRolling7:
			return rolling(salesSeries, 7)
		case SalesRolling14:
			return rolling(salesSeries, 14)
		case SalesRolling30:
			return rolling(salesSeries, 30)
		}
		return 0, false
	}
}
