package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

func TestEvaluateAlert(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.June, Day: 10}
	cases := []struct {
		name      string
		safety    float64
		onHand    int
		demand    float64
		wantType  string
		wantPrio  string
		wantDays  int
		wantOrder int
	}{
		{name: "stockout critical", onHand: 5, demand: 10, wantType: forecasting.AlertStockoutRisk, wantPrio: forecasting.PriorityCritical, wantDays: 1, wantOrder: 20},
		{name: "stockout just under safety stock", onHand: 12, demand: 10, wantType: forecasting.AlertStockoutRisk, wantPrio: forecasting.PriorityCritical, wantDays: 1, wantOrder: 20},
		{name: "stockout high", safety: 10, onHand: 6, demand: 1, wantType: forecasting.AlertStockoutRisk, wantPrio: forecasting.PriorityHigh, wantDays: 6, wantOrder: 2},
		{name: "stockout medium", safety: 20, onHand: 10, demand: 1, wantType: forecasting.AlertStockoutRisk, wantPrio: forecasting.PriorityMedium, wantDays: 10, wantOrder: 2},
		{name: "overstock", onHand: 50, demand: 10, wantType: forecasting.AlertOverstockRisk, wantPrio: forecasting.PriorityLow},
		{name: "healthy", onHand: 20, demand: 10},
		{name: "boundary at safety stock", onHand: 15, demand: 10},
		{name: "boundary at overstock", onHand: 40, demand: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			th := DefaultAlertThresholds()
			if tc.safety > 0 {
				th.SafetyFactor = tc.safety
			}
			got := EvaluateAlert("S1", "P1", tc.onHand, tc.demand, today, th)
			if tc.wantType == "" {
				if got != nil {
					t.Fatalf("expected no alert, got %s/%s", got.AlertType, got.Priority)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %s alert, got none", tc.wantType)
			}
			if got.AlertType != tc.wantType || got.Priority != tc.wantPrio {
				t.Fatalf("expected %s/%s, got %s/%s", tc.wantType, tc.wantPrio, got.AlertType, got.Priority)
			}
			if got.CurrentInventory == nil || *got.CurrentInventory != tc.onHand {
				t.Fatalf("current inventory not recorded: %v", got.CurrentInventory)
			}
			if tc.wantType != forecasting.AlertStockoutRisk {
				return
			}
			if got.PredictedStockoutDate == nil || civildate.FromTime(*got.PredictedStockoutDate) != today.AddDays(tc.wantDays) {
				t.Fatalf("expected stockout date %s, got %v", today.AddDays(tc.wantDays), got.PredictedStockoutDate)
			}
			if got.RecommendedQuantity == nil || *got.RecommendedQuantity != tc.wantOrder {
				t.Fatalf("expected reorder %d, got %v", tc.wantOrder, got.RecommendedQuantity)
			}
		})
	}
}

func seedPrediction(t *testing.T, rs *repos.Set, modelID uuid.UUID, store, sku string, day civil.Date, demand float64) {
	t.Helper()
	_, err := rs.Predictions.InsertIgnoreConflicts(dbctx.Context{Ctx: context.Background()}, []*types.Prediction{{
		ModelID:         modelID,
		StoreID:         store,
		SKU:             sku,
		TargetDate:      civildate.ToTime(day),
		PredictedDemand: demand,
	}})
	if err != nil {
		t.Fatalf("seed prediction: %v", err)
	}
}

func TestGenerateDeduplicatesAcrossRuns(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)
	today := civil.Date{Year: 2024, Month: time.June, Day: 10}

	m := testutil.SeedModel(t, db, "demand", 1, true)
	testutil.SeedSeries(t, db, "S1", "P1", today.AddDays(-3), []float64{9, 10, 11}, 2, 5)
	testutil.SeedSeries(t, db, "S2", "P1", today.AddDays(-1), []float64{10}, 2, 50)
	testutil.SeedSeries(t, db, "S3", "P1", today.AddDays(-1), []float64{10}, 2, 20)

	seedPrediction(t, rs, m.ID, "S1", "P1", today.AddDays(1), 10)
	seedPrediction(t, rs, m.ID, "S1", "P1", today.AddDays(2), 10)
	seedPrediction(t, rs, m.ID, "S2", "P1", today.AddDays(1), 10)
	seedPrediction(t, rs, m.ID, "S3", "P1", today.AddDays(1), 10)
	seedPrediction(t, rs, m.ID, "S4", "P1", today.AddDays(1), 10)
	// Outside the lookahead window.
	seedPrediction(t, rs, m.ID, "S3", "P1", today.AddDays(45), 1)

	pub := &spyPublisher{}
	engine := WithAlertClock(
		NewAlertEngine(db, log, rs.Models, rs.Predictions, rs.Observations, rs.Alerts, pub, nil, AlertThresholds{}),
		func() civil.Date { return today },
	)

	sum, err := engine.Generate(ctx, nil)
	if err != nil {
		t.Fatalf("Generate #1: %v", err)
	}
	if sum.ModelID != m.ID || sum.Scanned != 5 || sum.Created != 2 || sum.Outstanding != 1 || sum.NoInventory != 1 {
		t.Fatalf("Generate #1: unexpected summary %+v", sum)
	}
	if len(pub.alerts) != 2 {
		t.Fatalf("expected 2 published alerts, got %d", len(pub.alerts))
	}

	sum, err = engine.Generate(ctx, &m.ID)
	if err != nil {
		t.Fatalf("Generate #2: %v", err)
	}
	if sum.Created != 0 || sum.Outstanding != 3 {
		t.Fatalf("Generate #2: expected no new alerts, got %+v", sum)
	}
	if len(pub.alerts) != 2 {
		t.Fatalf("second run must not publish, got %d alerts", len(pub.alerts))
	}

	open, err := engine.List(ctx, repos.AlertFilter{StoreID: "S1"})
	if err != nil || len(open) != 1 {
		t.Fatalf("List S1: alerts=%d err=%v", len(open), err)
	}
	if open[0].AlertType != forecasting.AlertStockoutRisk || open[0].Priority != forecasting.PriorityCritical {
		t.Fatalf("S1 alert: unexpected %s/%s", open[0].AlertType, open[0].Priority)
	}

	ack, err := engine.Acknowledge(ctx, open[0].ID, "ops")
	if err != nil || ack.AlreadyAcknowledged || !ack.Alert.IsAcknowledged {
		t.Fatalf("Acknowledge #1: %+v err=%v", ack, err)
	}
	ack, err = engine.Acknowledge(ctx, open[0].ID, "someone-else")
	if err != nil || !ack.AlreadyAcknowledged {
		t.Fatalf("Acknowledge #2: %+v err=%v", ack, err)
	}

	// Once acknowledged, the next scan may raise a fresh stockout alert.
	sum, err = engine.Generate(ctx, nil)
	if err != nil || sum.Created != 1 {
		t.Fatalf("Generate #3: sum=%+v err=%v", sum, err)
	}
}

func TestGenerateRequiresModel(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	engine := NewAlertEngine(db, log, rs.Models, rs.Predictions, rs.Observations, rs.Alerts, nil, nil, AlertThresholds{})

	if _, err := engine.Generate(context.Background(), nil); !errors.Is(err, apperrors.ErrNoActiveModel) {
		t.Fatalf("expected ErrNoActiveModel, got %v", err)
	}
}
