package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/yungbote/smartinventory-backend/internal/artifacts"
	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/data/repos/testutil"
	"github.com/yungbote/smartinventory-backend/internal/ml"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

func linearSales(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + float64(i%7)
	}
	return out
}

func TestTrainActivatesAndServes(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)

	start := civil.Date{Year: 2024, Month: time.January, Day: 1}
	testutil.SeedSeries(t, db, "S1", "P1", start, linearSales(60, 10), 2, 30)
	testutil.SeedSeries(t, db, "S2", "P1", start, linearSales(60, 20), 3, 30)

	store := artifacts.NewFileStore(t.TempDir())
	registry := NewModelRegistry(db, log, rs.Models, store, nil, nil, ModelRegistryOptions{})
	trainer := NewTrainingService(db, log, rs.Observations, rs.Models, registry, store, nil, TrainingDefaults{})

	res, err := trainer.Train(ctx, TrainRequest{Name: "demand", Algorithm: ml.AlgorithmRidge})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	// Each 60-day series loses its first 30 rows to the lag30 requirement.
	if res.Rows != 60 || res.Dropped != 60 {
		t.Fatalf("expected 60 rows and 60 dropped, got %d/%d", res.Rows, res.Dropped)
	}
	if m := res.Metrics; m.TrainSamples+m.TestSamples != 60 || m.TestSamples < 12 || m.TestSamples > 13 {
		t.Fatalf("expected an 80/20 split of 60 rows, got %d/%d", m.TrainSamples, m.TestSamples)
	}
	if !res.Model.IsActive || res.Model.Version != 1 || res.Model.Algorithm != ml.AlgorithmRidge {
		t.Fatalf("unexpected model row %+v", res.Model)
	}
	if _, err := os.Stat(res.Model.ArtifactPath); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}

	again, err := trainer.Train(ctx, TrainRequest{Name: "demand", Algorithm: ml.AlgorithmRidge})
	if err != nil {
		t.Fatalf("Train #2: %v", err)
	}
	if again.Model.Version != 2 {
		t.Fatalf("expected version 2, got %d", again.Model.Version)
	}
	if n, _ := rs.Models.CountActive(dbctx.Context{Ctx: ctx}); n != 1 {
		t.Fatalf("expected exactly one active model, got %d", n)
	}

	svc := NewPredictionService(db, log, registry, rs.Observations, nil, nil, PredictionServiceOptions{})
	pred, err := svc.PredictSingle(ctx, "S2", "P1", start.AddDays(60))
	if err != nil || pred == nil {
		t.Fatalf("PredictSingle: res=%v err=%v", pred, err)
	}
	if pred.ModelID != again.Model.ID || pred.Demand <= 0 {
		t.Fatalf("unexpected prediction %+v", pred)
	}
}

func TestTrainRejectsBadRequests(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)
	store := artifacts.NewFileStore(t.TempDir())
	registry := NewModelRegistry(db, log, rs.Models, store, nil, nil, ModelRegistryOptions{})
	trainer := NewTrainingService(db, log, rs.Observations, rs.Models, registry, store, nil, TrainingDefaults{})

	from := civil.Date{Year: 2024, Month: time.March, Day: 2}
	to := civil.Date{Year: 2024, Month: time.March, Day: 1}
	if _, err := trainer.Train(ctx, TrainRequest{From: &from, To: &to}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("inverted range: expected validation error, got %v", err)
	}
	if _, err := trainer.Train(ctx, TrainRequest{}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("no data: expected validation error, got %v", err)
	}
	if _, err := trainer.Train(ctx, TrainRequest{Algorithm: "prophet"}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("unknown algorithm: expected validation error, got %v", err)
	}

	testutil.SeedSeries(t, db, "S1", "P1", from, linearSales(20, 5), 1, 3)
	if _, err := trainer.Train(ctx, TrainRequest{Algorithm: ml.AlgorithmRidge}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("short history: expected validation error, got %v", err)
	}
	if n, _ := rs.Models.CountActive(dbctx.Context{Ctx: ctx}); n != 0 {
		t.Fatalf("failed training must not activate a model, %d active", n)
	}
}

func TestTrainRejectsUnsafeModelNames(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)

	start := civil.Date{Year: 2024, Month: time.January, Day: 1}
	testutil.SeedSeries(t, db, "S1", "P1", start, linearSales(60, 10), 2, 30)

	base := t.TempDir()
	store := artifacts.NewFileStore(filepath.Join(base, "models"))
	registry := NewModelRegistry(db, log, rs.Models, store, nil, nil, ModelRegistryOptions{})
	trainer := NewTrainingService(db, log, rs.Observations, rs.Models, registry, store, nil, TrainingDefaults{})

	for _, name := range []string{"../../escaped", "../escaped", "a/b", "/etc/demand", ".hidden", "demand..v2", `a\b`} {
		_, err := trainer.Train(ctx, TrainRequest{Name: name, Algorithm: ml.AlgorithmRidge})
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("name %q: expected validation error, got %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(base, "escaped")); !os.IsNotExist(err) {
		t.Fatalf("artifact written outside the store root: %v", err)
	}
	if n, _ := rs.Models.CountActive(dbctx.Context{Ctx: ctx}); n != 0 {
		t.Fatalf("rejected names must not create models, %d active", n)
	}

	res, err := trainer.Train(ctx, TrainRequest{Name: "demand-v2.1_eu", Algorithm: ml.AlgorithmRidge})
	if err != nil {
		t.Fatalf("Train with safe name: %v", err)
	}
	if !strings.HasPrefix(res.Model.ArtifactPath, filepath.Join(base, "models")+string(filepath.Separator)) {
		t.Fatalf("artifact %s not under the store root", res.Model.ArtifactPath)
	}
}

func TestRegistryConcurrentActivationLeavesOneActive(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)
	registry := NewModelRegistry(db, log, rs.Models, nil, nil, nil, ModelRegistryOptions{})

	var changes sync.Map
	registry.OnChange(func(id uuid.UUID) { changes.Store(id, true) })

	ids := make([]uuid.UUID, 0, 5)
	for v := 1; v <= 5; v++ {
		ids = append(ids, testutil.SeedModel(t, db, "demand", v, false).ID)
	}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.Activate(ctx, id); err != nil {
				t.Errorf("Activate %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	if n, _ := rs.Models.CountActive(dbctx.Context{Ctx: ctx}); n != 1 {
		t.Fatalf("expected exactly one active model, got %d", n)
	}
	for _, id := range ids {
		if _, ok := changes.Load(id); !ok {
			t.Fatalf("OnChange not fired for %s", id)
		}
	}
}

func TestRegistryCurrentWithMissingArtifact(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)
	registry := NewModelRegistry(db, log, rs.Models, artifacts.NewFileStore(t.TempDir()), nil, nil, ModelRegistryOptions{})

	if lm, err := registry.Current(ctx); err != nil || lm != nil {
		t.Fatalf("Current without models: lm=%v err=%v", lm, err)
	}
	m := testutil.SeedModel(t, db, "demand", 1, true)
	if lm, err := registry.Current(ctx); err != nil || lm != nil {
		t.Fatalf("Current with missing artifact: lm=%v err=%v", lm, err)
	}
	if _, err := registry.LoadArtifact(ctx, m); !errors.Is(err, apperrors.ErrArtifactMissing) {
		t.Fatalf("LoadArtifact: expected ErrArtifactMissing, got %v", err)
	}
	if _, err := registry.GetByID(ctx, uuid.New()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("GetByID unknown: expected ErrNotFound, got %v", err)
	}
}

type countingStore struct {
	artifacts.Store
	loads atomic.Int32
}

func (s *countingStore) Load(ctx context.Context, location string) (*artifacts.Bundle, error) {
	s.loads.Add(1)
	return s.Store.Load(ctx, location)
}

func TestRegistryArtifactCacheExpiresAndInvalidates(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	rs := repos.NewSet(db, log)

	start := civil.Date{Year: 2024, Month: time.January, Day: 1}
	testutil.SeedSeries(t, db, "S1", "P1", start, linearSales(60, 10), 2, 30)

	store := &countingStore{Store: artifacts.NewFileStore(t.TempDir())}
	registry := NewModelRegistry(db, log, rs.Models, store, nil, nil, ModelRegistryOptions{CacheTTL: 50 * time.Millisecond})
	trainer := NewTrainingService(db, log, rs.Observations, rs.Models, registry, store, nil, TrainingDefaults{})
	res, err := trainer.Train(ctx, TrainRequest{Name: "demand", Algorithm: ml.AlgorithmRidge})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	registry.Invalidate(uuid.Nil)
	base := store.loads.Load()

	for i := 0; i < 3; i++ {
		if _, err := registry.LoadArtifact(ctx, res.Model); err != nil {
			t.Fatalf("LoadArtifact: %v", err)
		}
	}
	if got := store.loads.Load() - base; got != 1 {
		t.Fatalf("expected one load while cached, got %d", got)
	}

	time.Sleep(120 * time.Millisecond)
	if _, err := registry.LoadArtifact(ctx, res.Model); err != nil {
		t.Fatalf("LoadArtifact after ttl: %v", err)
	}
	if got := store.loads.Load() - base; got != 2 {
		t.Fatalf("expired entry should reload, got %d loads", got)
	}

	registry.Invalidate(res.Model.ID)
	if _, err := registry.LoadArtifact(ctx, res.Model); err != nil {
		t.Fatalf("LoadArtifact after invalidate: %v", err)
	}
	if got := store.loads.Load() - base; got != 3 {
		t.Fatalf("invalidated entry should reload, got %d loads", got)
	}
}
