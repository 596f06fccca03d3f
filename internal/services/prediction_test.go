package services

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
)

func TestPredictSingleNilWithoutHistoryThenCached(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)

	m := testutil.SeedModel(t, db, "demand", 1, true)
	lm, spy := spyModel(t, m, 12)
	reg := &fakeRegistry{lm: lm}
	svc := NewPredictionService(db, log, reg, rs.Observations, NewMemoryPredictionCache(time.Hour, 0), nil, PredictionServiceOptions{})

	start := civil.Date{Year: 2024, Month: time.January, Day: 1}
	target := start.AddDays(10)

	res, err := svc.PredictSingle(ctx, "S1", "P1", target)
	if err != nil {
		t.Fatalf("PredictSingle(no history): %v", err)
	}
	if res != nil {
		t.Fatalf("PredictSingle(no history): expected nil, got %+v", res)
	}
	if spy.calls.Load() != 0 {
		t.Fatalf("regressor should not run without history, ran %d times", spy.calls.Load())
	}

	testutil.SeedSeries(t, db, "S1", "P1", start, []float64{4, 5, 6, 7, 8}, 2.5, 40)

	first, err := svc.PredictSingle(ctx, "S1", "P1", target)
	if err != nil || first == nil {
		t.Fatalf("PredictSingle #1: res=%v err=%v", first, err)
	}
	if first.Demand != 12 || first.ModelID != m.ID || first.ModelVersion != 1 {
		t.Fatalf("PredictSingle #1: unexpected %+v", first)
	}
	if first.Lower >= first.Demand || first.Upper <= first.Demand || first.Lower < 0 {
		t.Fatalf("band should straddle demand: %+v", first)
	}
	if first.HistoryObserved != 5 {
		t.Fatalf("expected 5 history points, got %d", first.HistoryObserved)
	}

	second, err := svc.PredictSingle(ctx, "S1", "P1", target)
	if err != nil || second == nil {
		t.Fatalf("PredictSingle #2: res=%v err=%v", second, err)
	}
	if spy.calls.Load() != 1 {
		t.Fatalf("repeat call should be served from cache, regressor ran %d times", spy.calls.Load())
	}
	if second.Demand != first.Demand {
		t.Fatalf("cached result differs: %v vs %v", second.Demand, first.Demand)
	}

	reg.fire(m.ID)
	if _, err := svc.PredictSingle(ctx, "S1", "P1", target); err != nil {
		t.Fatalf("PredictSingle after activation change: %v", err)
	}
	if spy.calls.Load() != 2 {
		t.Fatalf("activation change should purge the cache, regressor ran %d times", spy.calls.Load())
	}
}

func TestPredictSingleNoActiveModel(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	svc := NewPredictionService(db, log, &fakeRegistry{}, rs.Observations, nil, nil, PredictionServiceOptions{})

	res, err := svc.PredictSingle(context.Background(), "S1", "P1", civil.Date{Year: 2024, Month: time.May, Day: 1})
	if err != nil || res != nil {
		t.Fatalf("expected nil result without a model, got res=%v err=%v", res, err)
	}
}

func TestPredictSingleFlagsUnknownCategories(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)

	m := testutil.SeedModel(t, db, "demand", 1, true)
	lm, _ := spyModel(t, m, 3)
	svc := NewPredictionService(db, log, &fakeRegistry{lm: lm}, rs.Observations, nil, nil, PredictionServiceOptions{})

	start := civil.Date{Year: 2024, Month: time.February, Day: 1}
	testutil.SeedSeries(t, db, "S9", "P1", start, []float64{1, 2}, 1, 0)

	res, err := svc.PredictSingle(context.Background(), "S9", "P1", start.AddDays(2))
	if err != nil || res == nil {
		t.Fatalf("PredictSingle: res=%v err=%v", res, err)
	}
	if !res.UnknownStore || res.UnknownProduct {
		t.Fatalf("expected only the store flagged unknown, got %+v", res)
	}
}

func TestPredictBatchStoreMajorSkipsNotReady(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)

	m := testutil.SeedModel(t, db, "demand", 1, true)
	lm, _ := spyModel(t, m, 5)
	svc := NewPredictionService(db, log, &fakeRegistry{lm: lm}, rs.Observations, nil, nil, PredictionServiceOptions{})

	start := civil.Date{Year: 2024, Month: time.March, Day: 1}
	testutil.SeedSeries(t, db, "S1", "P1", start, []float64{1, 2, 3}, 1, 10)
	testutil.SeedSeries(t, db, "S2", "P1", start, []float64{1, 2, 3}, 1, 10)

	from, to := start.AddDays(3), start.AddDays(4)
	out, err := svc.PredictBatch(context.Background(), []string{"S2", "S1"}, []string{"P1", "P2"}, from, to)
	if err != nil {
		t.Fatalf("PredictBatch: %v", err)
	}
	// P2 has no history anywhere, so only 2 stores x 1 sku x 2 dates remain.
	if len(out) != 4 {
		t.Fatalf("expected 4 results, got %d", len(out))
	}
	want := []struct {
		store string
		date  civil.Date
	}{{"S2", from}, {"S2", to}, {"S1", from}, {"S1", to}}
	for i, w := range want {
		if out[i].StoreID != w.store || out[i].Date != w.date || out[i].SKU != "P1" {
			t.Fatalf("result %d: expected %s/P1/%s, got %s/%s/%s", i, w.store, w.date, out[i].StoreID, out[i].SKU, out[i].Date)
		}
	}

	if _, err := svc.PredictBatch(context.Background(), []string{"S1"}, []string{"P1"}, to, from); err == nil {
		t.Fatalf("expected validation error for inverted range")
	}
}
