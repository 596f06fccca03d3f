package features

import (
	"math"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/yungbote/smartinventory-backend/internal/domain/sales"
)

// Point is the numeric view of one Observation.
type Point struct {
	Date      civil.Date
	Sales     float64
	Price     float64
	OnHand    int
	Promotion bool
}

// Keyed is a Point tagged with its series.
type Keyed struct {
	StoreID string
	SKU     string
	Point
}

func PointFromObservation(o *sales.Observation) Point {
	return Point{
		Date:      o.Day(),
		Sales:     o.SalesFloat(),
		Price:     o.PriceFloat(),
		OnHand:    o.OnHand,
		Promotion: o.PromotionFlag,
	}
}

func PointsFromObservations(obs []*sales.Observation) []Point {
	out := make([]Point, 0, len(obs))
	for _, o := range obs {
		if o == nil {
			continue
		}
		out = append(out, PointFromObservation(o))
	}
	return out
}

func KeyedFromObservations(obs []*sales.Observation) []Keyed {
	out := make([]Keyed, 0, len(obs))
	for _, o := range obs {
		if o == nil {
			continue
		}
		out = append(out, Keyed{StoreID: o.StoreID, SKU: o.SKU, Point: PointFromObservation(o)})
	}
	return out
}

func sortPoints(pts []Point) {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func pctChange(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
