package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	"github.com/yungbote/smartinventory-backend/internal/jobs/runtime"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
)

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	metrics  *observability.Metrics

	concurrency  int
	pollInterval time.Duration
	staleRunning time.Duration

	wg sync.WaitGroup
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, metrics *observability.Metrics) *Worker {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		db:           db,
		log:          baseLog.With("component", "JobWorker"),
		repo:         repo,
		registry:     registry,
		metrics:      metrics,
		concurrency:  concurrency,
		pollInterval: envutil.Duration("WORKER_POLL_INTERVAL", 1*time.Second),
		staleRunning: envutil.Duration("WORKER_STALE_RUNNING", 30*time.Minute),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool",
		"concurrency", w.concurrency,
		"stale_running", w.staleRunning.String(),
		"job_types", w.registry.Types(),
	)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop started by Start has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job ran.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.staleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	spanCtx, span := observability.StartSpan(ctx, "job."+job.JobType,
		attribute.String("job.id", job.ID.String()),
		attribute.Int("job.attempts", job.Attempts),
	)
	defer span.End()

	jc := runtime.NewContext(spanCtx, w.db, job, w.repo, w.log)
	start := time.Now()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		w.metrics.ObserveActivity(job.JobType, "failed", time.Since(start))
		return true, nil
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic",
					"job_id", job.ID,
					"job_type", job.JobType,
					"panic", r,
				)
				jc.Fail("panic", errFromRecover(r))
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			// Most pipelines call jc.Fail themselves; this is a safety net.
			jc.Fail("run", runErr)
		}
	}()

	status := job.Status
	if status == "running" {
		// Handler returned without a terminal transition.
		status = "incomplete"
		w.log.Warn("Job handler returned without finishing", "job_id", job.ID, "job_type", job.JobType)
	}
	w.metrics.ObserveActivity(job.JobType, status, time.Since(start))
	return true, nil
}

// Drain runs queued jobs until none is claimable or ctx ends.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ran, err := w.RunOnce(ctx)
		if err != nil {
			return n, err
		}
		if !ran {
			return n, nil
		}
		n++
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
