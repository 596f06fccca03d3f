package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/pkg/ctxutil"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

func TestBatchSubmitAndCancel(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	jobs := NewJobService(db, log, rs.JobRuns, rs.BatchJobs)
	batches := NewBatchService(db, log, rs.BatchJobs, rs.Models, jobs)
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{RequestID: "req-1"})

	from := civil.Date{Year: 2024, Month: time.July, Day: 1}
	req := BatchRequest{StoreIDs: []string{" S1", "S1", ""}, From: from, To: from.AddDays(6), RequestedBy: "planner"}

	if _, err := batches.Submit(ctx, req); !errors.Is(err, apperrors.ErrNoActiveModel) {
		t.Fatalf("Submit without model: expected ErrNoActiveModel, got %v", err)
	}
	if _, err := batches.Submit(ctx, BatchRequest{From: from, To: from.AddDays(-1)}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("Submit inverted range: expected validation error, got %v", err)
	}

	m := testutil.SeedModel(t, db, "demand", 1, true)
	job, err := batches.Submit(ctx, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != forecasting.BatchPending || job.ModelID != m.ID || job.TaskID == nil {
		t.Fatalf("unexpected batch job %+v", job)
	}
	var stores []string
	if err := json.Unmarshal(job.StoresFilter, &stores); err != nil || len(stores) != 1 || stores[0] != "S1" {
		t.Fatalf("stores filter not normalized: %s", job.StoresFilter)
	}

	run, err := jobs.GetByID(dbctx.Context{Ctx: ctx}, *job.TaskID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if run.JobType != jobstatus.TypeBatchPredict || run.Status != jobstatus.StatusQueued || run.EntityID == nil || *run.EntityID != job.ID {
		t.Fatalf("unexpected job run %+v", run)
	}
	var payload map[string]any
	_ = json.Unmarshal(run.Payload, &payload)
	if payload["batch_job_id"] != job.ID.String() || payload["request_id"] != "req-1" {
		t.Fatalf("unexpected payload %v", payload)
	}

	canceled, err := batches.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != forecasting.BatchFailed || canceled.ErrorLog != "canceled" || !canceled.CancelRequest {
		t.Fatalf("pending batch should fail as canceled, got %+v", canceled)
	}
	run, _ = jobs.GetByID(dbctx.Context{Ctx: ctx}, *job.TaskID)
	if run.Status != jobstatus.StatusCanceled {
		t.Fatalf("job run should be canceled, got %s", run.Status)
	}
	if _, err := batches.Cancel(ctx, job.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("second cancel: expected conflict, got %v", err)
	}
	if _, err := jobs.Restart(dbctx.Context{Ctx: ctx}, *job.TaskID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("batch restart: expected conflict, got %v", err)
	}
}

func TestJobServiceEnqueueIfIdleAndRestart(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	jobs := NewJobService(db, log, rs.JobRuns, rs.BatchJobs)
	dbc := dbctx.Context{Ctx: context.Background()}

	first, created, err := jobs.EnqueueIfIdle(dbc, jobstatus.TypeModelTrain, "", nil, "health_check", nil)
	if err != nil || !created {
		t.Fatalf("EnqueueIfIdle #1: created=%v err=%v", created, err)
	}
	if _, created, err := jobs.EnqueueIfIdle(dbc, jobstatus.TypeModelTrain, "", nil, "health_check", nil); err != nil || created {
		t.Fatalf("EnqueueIfIdle #2 should skip: created=%v err=%v", created, err)
	}

	if _, err := jobs.Restart(dbc, first.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("restart queued job: expected conflict, got %v", err)
	}
	if _, err := jobs.Cancel(dbc, first.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	again, err := jobs.Restart(dbc, first.ID)
	if err != nil || again.Status != jobstatus.StatusQueued {
		t.Fatalf("Restart: job=%+v err=%v", again, err)
	}
}

func TestHealthCheck(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)
	jobs := NewJobService(db, log, rs.JobRuns, rs.BatchJobs)
	health := NewModelHealthService(db, log, rs.Models, rs.Predictions, jobs, HealthOptions{})

	rep, err := health.Check(ctx)
	if err != nil || rep.Status != HealthNoModel {
		t.Fatalf("no model: rep=%+v err=%v", rep, err)
	}

	m := testutil.SeedModel(t, db, "demand", 1, true)
	rep, err = health.Check(ctx)
	if err != nil || rep.Status != HealthHealthy || rep.Evaluated != 0 {
		t.Fatalf("fresh model: rep=%+v err=%v", rep, err)
	}

	day := civil.Date{Year: 2024, Month: time.January, Day: 5}
	seedPrediction(t, rs, m.ID, "S1", "P1", day, 10)
	seedPrediction(t, rs, m.ID, "S1", "P1", day.AddDays(1), 10)
	testutil.SeedSeries(t, db, "S1", "P1", day, []float64{10, 8}, 1, 5)
	if _, err := rs.Predictions.BackfillActuals(dbctx.Context{Ctx: ctx}, day, day.AddDays(1)); err != nil {
		t.Fatalf("BackfillActuals: %v", err)
	}

	// |10-10| + |10-8| over 18 actual units is about 11.1%.
	rep, err = health.Check(ctx)
	if err != nil || rep.Status != HealthHealthy || rep.Evaluated != 2 || rep.MAPE == nil {
		t.Fatalf("accurate model: rep=%+v err=%v", rep, err)
	}

	strict := NewModelHealthService(db, log, rs.Models, rs.Predictions, jobs, HealthOptions{MAPEThreshold: 5})
	rep, err = strict.Check(ctx)
	if err != nil || rep.Status != HealthRetraining || rep.Reason != "accuracy" || rep.RetrainJobID == nil {
		t.Fatalf("inaccurate model: rep=%+v err=%v", rep, err)
	}
	rep, err = strict.Check(ctx)
	if err != nil || rep.Status != HealthRetraining || rep.RetrainJobID != nil {
		t.Fatalf("retrain already queued: rep=%+v err=%v", rep, err)
	}

	if err := db.Model(m).Update("trained_at", time.Now().Add(-40*24*time.Hour)).Error; err != nil {
		t.Fatalf("age model: %v", err)
	}
	rep, err = health.Check(ctx)
	if err != nil || rep.Status != HealthRetraining || rep.Reason != "model_age" || rep.AgeDays < 39 {
		t.Fatalf("stale model: rep=%+v err=%v", rep, err)
	}
}
