package forecasting

import (
	"context"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

func TestPredictionInsertKeepsFirstWrite(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewPredictionRepo(db, testutil.Logger(t))

	modelID := uuid.New()
	day := civil.Date{Year: 2024, Month: time.March, Day: 4}

	first := &types.Prediction{ModelID: modelID, StoreID: "S1", SKU: "P1", TargetDate: civildate.ToTime(day), PredictedDemand: 10}
	n, err := repo.InsertIgnoreConflicts(dbc, []*types.Prediction{first})
	if err != nil || n != 1 {
		t.Fatalf("InsertIgnoreConflicts #1: n=%d err=%v", n, err)
	}
	second := &types.Prediction{ModelID: modelID, StoreID: "S1", SKU: "P1", TargetDate: civildate.ToTime(day), PredictedDemand: 99}
	n, err = repo.InsertIgnoreConflicts(dbc, []*types.Prediction{second})
	if err != nil {
		t.Fatalf("InsertIgnoreConflicts #2: %v", err)
	}
	if n != 0 {
		t.Fatalf("InsertIgnoreConflicts #2: expected 0 inserted, got %d", n)
	}

	got, err := repo.Get(dbc, modelID, "S1", "P1", day)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got.PredictedDemand != 10 {
		t.Fatalf("Get: expected first write (10), got %v", got.PredictedDemand)
	}
	if cnt, _ := repo.CountByModel(dbc, modelID); cnt != 1 {
		t.Fatalf("CountByModel: expected 1, got %d", cnt)
	}

	// A different model may predict the same key.
	other := &types.Prediction{ModelID: uuid.New(), StoreID: "S1", SKU: "P1", TargetDate: civildate.ToTime(day), PredictedDemand: 5}
	if n, err := repo.InsertIgnoreConflicts(dbc, []*types.Prediction{other}); err != nil || n != 1 {
		t.Fatalf("InsertIgnoreConflicts other model: n=%d err=%v", n, err)
	}

	rows, err := repo.ListInWindow(dbc, modelID, day, day.AddDays(3))
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListInWindow: len=%d err=%v", len(rows), err)
	}
}

func TestPredictionBackfillActuals(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewPredictionRepo(db, testutil.Logger(t))

	start := civil.Date{Year: 2024, Month: time.January, Day: 1}
	testutil.SeedSeries(t, db, "S1", "P1", start, []float64{3, 4}, 2.5, 10)

	modelID := uuid.New()
	rows := []*types.Prediction{
		{ModelID: modelID, StoreID: "S1", SKU: "P1", TargetDate: civildate.ToTime(start), PredictedDemand: 2},
		{ModelID: modelID, StoreID: "S1", SKU: "P1", TargetDate: civildate.ToTime(start.AddDays(5)), PredictedDemand: 2},
	}
	if _, err := repo.InsertIgnoreConflicts(dbc, rows); err != nil {
		t.Fatalf("InsertIgnoreConflicts: %v", err)
	}
	if _, err := repo.BackfillActuals(dbc, start, start.AddDays(10)); err != nil {
		t.Fatalf("BackfillActuals: %v", err)
	}
	got, err := repo.Get(dbc, modelID, "S1", "P1", start)
	if err != nil || got == nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ActualDemand == nil || *got.ActualDemand != 3 {
		t.Fatalf("expected actual 3, got %v", got.ActualDemand)
	}
	later, _ := repo.Get(dbc, modelID, "S1", "P1", start.AddDays(5))
	if later == nil || later.ActualDemand != nil {
		t.Fatalf("expected no actual without an observation, got %v", later)
	}
}

func TestSetActiveByIDKeepsExactlyOneActive(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewTrainedModelRepo(db, testutil.Logger(t))

	var models []*types.TrainedModel
	for v := 1; v <= 4; v++ {
		models = append(models, testutil.SeedModel(t, db, "demand", v, v == 1))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(models))
	for _, m := range models {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			errs <- repo.SetActiveByID(dbc, id)
		}(m.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("SetActiveByID: %v", err)
		}
	}

	n, err := repo.CountActive(dbc)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one active model, got %d", n)
	}

	if err := repo.SetActiveByID(dbc, uuid.New()); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("SetActiveByID unknown: expected ErrNotFound, got %v", err)
	}
	if n, _ := repo.CountActive(dbc); n != 1 {
		t.Fatalf("unknown activation must not clear the active model, got %d active", n)
	}

	if err := repo.SetActiveByID(dbc, models[2].ID); err != nil {
		t.Fatalf("SetActiveByID: %v", err)
	}
	active, err := repo.GetActive(dbc)
	if err != nil || active == nil || active.ID != models[2].ID {
		t.Fatalf("GetActive: expected %v, got %v (err=%v)", models[2].ID, active, err)
	}

	next, err := repo.NextVersion(dbc, "demand")
	if err != nil || next != 5 {
		t.Fatalf("NextVersion: expected 5, got %d (err=%v)", next, err)
	}
	if next, _ := repo.NextVersion(dbc, "fresh"); next != 1 {
		t.Fatalf("NextVersion fresh: expected 1, got %d", next)
	}
}

func TestBatchJobProgressGuard(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewBatchJobRepo(db, testutil.Logger(t))

	job := &types.BatchJob{ModelID: uuid.New(), TotalCount: 10}
	if err := repo.Create(dbc, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != forecasting.BatchPending {
		t.Fatalf("Create: expected pending, got %s", job.Status)
	}

	if ok, _ := repo.AddProgress(dbc, job.ID, 5, 0); ok {
		t.Fatalf("AddProgress: pending job must not accept progress")
	}
	if ok, err := repo.Transition(dbc, job.ID, []string{forecasting.BatchPending}, forecasting.BatchCompleted, nil); err != nil || ok {
		t.Fatalf("Transition pending->completed: expected refusal, ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Transition(dbc, job.ID, []string{forecasting.BatchPending}, forecasting.BatchProcessing, nil); err != nil || !ok {
		t.Fatalf("Transition pending->processing: ok=%v err=%v", ok, err)
	}

	if ok, err := repo.AddProgress(dbc, job.ID, 6, 1); err != nil || !ok {
		t.Fatalf("AddProgress 6: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.AddProgress(dbc, job.ID, 5, 0); ok {
		t.Fatalf("AddProgress: must not exceed total")
	}
	if ok, err := repo.AddProgress(dbc, job.ID, 4, 0); err != nil || !ok {
		t.Fatalf("AddProgress 4: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetByID(dbc, job.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.CompletedCount != 10 || got.FailedCount != 1 {
		t.Fatalf("progress: completed=%d failed=%d", got.CompletedCount, got.FailedCount)
	}
	if got.Percentage() != 100 {
		t.Fatalf("Percentage: expected 100, got %v", got.Percentage())
	}

	if ok, _ := repo.RequestCancel(dbc, job.ID); !ok {
		t.Fatalf("RequestCancel on processing job: expected ok")
	}
	if ok, err := repo.Transition(dbc, job.ID, []string{forecasting.BatchProcessing}, forecasting.BatchCompleted, nil); err != nil || !ok {
		t.Fatalf("Transition processing->completed: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.RequestCancel(dbc, job.ID); ok {
		t.Fatalf("RequestCancel on completed job: expected refusal")
	}
}

func TestAlertDedupeAndAcknowledge(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewAlertRepo(db, testutil.Logger(t))

	mk := func() *types.Alert {
		return &types.Alert{
			StoreID:   "S1",
			SKU:       "P1",
			AlertType: forecasting.AlertStockoutRisk,
			Priority:  forecasting.PriorityHigh,
			Message:   "low stock",
		}
	}

	a1, created, err := repo.GetOrCreateOpen(dbc, mk())
	if err != nil || !created {
		t.Fatalf("GetOrCreateOpen #1: created=%v err=%v", created, err)
	}
	a2, created, err := repo.GetOrCreateOpen(dbc, mk())
	if err != nil {
		t.Fatalf("GetOrCreateOpen #2: %v", err)
	}
	if created || a2.ID != a1.ID {
		t.Fatalf("GetOrCreateOpen #2: expected existing %v, got %v (created=%v)", a1.ID, a2.ID, created)
	}

	if _, _, err := repo.Acknowledge(dbc, uuid.New(), "ops", time.Now()); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Acknowledge unknown: expected ErrNotFound, got %v", err)
	}

	at := time.Now().UTC()
	acked, already, err := repo.Acknowledge(dbc, a1.ID, "ops", at)
	if err != nil || already || !acked.IsAcknowledged {
		t.Fatalf("Acknowledge: already=%v err=%v", already, err)
	}
	again, already, err := repo.Acknowledge(dbc, a1.ID, "someone-else", at.Add(time.Hour))
	if err != nil || !already {
		t.Fatalf("Acknowledge repeat: already=%v err=%v", already, err)
	}
	if again.AcknowledgedBy != "ops" {
		t.Fatalf("Acknowledge repeat must not overwrite actor, got %q", again.AcknowledgedBy)
	}

	// Once acknowledged, a new condition opens a fresh alert.
	a3, created, err := repo.GetOrCreateOpen(dbc, mk())
	if err != nil || !created || a3.ID == a1.ID {
		t.Fatalf("GetOrCreateOpen after ack: created=%v err=%v", created, err)
	}

	open := false
	rows, err := repo.List(dbc, AlertFilter{StoreID: "S1", Acknowledged: &open})
	if err != nil || len(rows) != 1 || rows[0].ID != a3.ID {
		t.Fatalf("List open: len=%d err=%v", len(rows), err)
	}
	all, _ := repo.List(dbc, AlertFilter{})
	if len(all) != 2 {
		t.Fatalf("List all: expected 2, got %d", len(all))
	}
}
