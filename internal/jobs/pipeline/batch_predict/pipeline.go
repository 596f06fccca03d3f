package batch_predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/smartinventory-backend/internal/jobs/runtime"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

var errCanceled = errors.New("canceled")

// plan enumerates stores x products x dates store-major, so item i is
// stable across runs and completed_count doubles as a resume cursor.
type plan struct {
	stores   []string
	products []string
	dates    []civil.Date
}

func (pl plan) total() int { return len(pl.stores) * len(pl.products) * len(pl.dates) }

func (pl plan) item(i int) (string, string, civil.Date) {
	perStore := len(pl.products) * len(pl.dates)
	return pl.stores[i/perStore], pl.products[(i/len(pl.dates))%len(pl.products)], pl.dates[i%len(pl.dates)]
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	batchID, ok := jc.PayloadUUID("batch_job_id")
	if !ok && jc.Job.EntityID != nil {
		batchID, ok = *jc.Job.EntityID, true
	}
	if !ok {
		jc.Fail("validate", fmt.Errorf("missing batch_job_id"))
		return nil
	}
	dbc := dbctx.Context{Ctx: jc.Ctx}
	job, err := p.batches.GetByID(dbc, batchID)
	if err != nil {
		jc.Fail("load", err)
		return nil
	}
	if job == nil {
		jc.Fail("load", fmt.Errorf("batch job %s not found", batchID))
		return nil
	}
	if job.Terminal() {
		jc.Succeed("done", map[string]any{"batch_job_id": job.ID, "status": job.Status, "skipped": true})
		return nil
	}

	jc.Progress("model", 1, "Loading model")
	lm, err := p.loadModel(jc.Ctx, job.ModelID, job.Status == forecasting.BatchPending)
	if err != nil {
		p.fail(jc, job, "model", fmt.Errorf("no model: %w", err))
		return nil
	}

	jc.Progress("plan", 2, "Planning predictions")
	pl, err := p.plan(dbc, job)
	if err != nil {
		p.fail(jc, job, "plan", err)
		return nil
	}
	total := pl.total()

	now := time.Now().UTC()
	switch job.Status {
	case forecasting.BatchPending:
		moved, err := p.batches.Transition(dbc, job.ID, []string{forecasting.BatchPending}, forecasting.BatchProcessing, map[string]interface{}{
			"total_predictions":     total,
			"completed_predictions": 0,
			"failed_predictions":    0,
			"started_at":            now,
		})
		if err != nil {
			p.fail(jc, job, "start", err)
			return nil
		}
		if !moved {
			// Canceled between claim and start.
			jc.Fail("start", errCanceled)
			return nil
		}
		job.Status = forecasting.BatchProcessing
		job.TotalCount = total
		job.CompletedCount = 0
		job.FailedCount = 0
		p.metrics.IncBatchJob(forecasting.BatchProcessing)
	case forecasting.BatchProcessing:
		if total != job.TotalCount {
			p.fail(jc, job, "resume", fmt.Errorf("plan changed on resume: %d items, recorded %d", total, job.TotalCount))
			return nil
		}
		p.log.Info("Resuming batch", "batch_job_id", job.ID, "completed", job.CompletedCount, "total", total)
	}

	cursor := job.CompletedCount
	for cursor < total {
		if err := jc.Ctx.Err(); err != nil {
			// Worker shutdown; the stale-heartbeat reclaim resumes from cursor.
			p.log.Warn("Batch interrupted", "batch_job_id", job.ID, "completed", cursor)
			return nil
		}
		cur, err := p.batches.GetByID(dbc, job.ID)
		if err != nil {
			p.fail(jc, job, "predict", err)
			return nil
		}
		if cur == nil || cur.CancelRequest || cur.Status != forecasting.BatchProcessing {
			p.fail(jc, job, "canceled", errCanceled)
			return nil
		}

		end := min(cursor+p.opts.ChunkSize, total)
		rows, notReady, failed := p.runChunk(jc.Ctx, lm, pl, cursor, end)
		if jc.Ctx.Err() != nil {
			return nil
		}
		if len(rows) > 0 {
			if _, err := p.preds.InsertIgnoreConflicts(dbc, rows); err != nil {
				p.fail(jc, job, "flush", err)
				return nil
			}
		}
		advanced, err := p.batches.AddProgress(dbc, job.ID, end-cursor, failed)
		if err != nil {
			p.fail(jc, job, "progress", err)
			return nil
		}
		if !advanced {
			p.fail(jc, job, "canceled", errCanceled)
			return nil
		}
		p.metrics.AddBatchItems("ok", len(rows))
		p.metrics.AddBatchItems("not_ready", notReady)
		p.metrics.AddBatchItems("failed", failed)

		cursor = end
		job.CompletedCount = cursor
		job.FailedCount += failed
		jc.Progress("predict", 2+int(float64(cursor)/float64(total)*95), fmt.Sprintf("%d/%d predictions", cursor, total))
	}

	if _, err := p.batches.Transition(dbc, job.ID, []string{forecasting.BatchProcessing}, forecasting.BatchCompleted, map[string]interface{}{
		"finished_at": time.Now().UTC(),
	}); err != nil {
		p.fail(jc, job, "finalize", err)
		return nil
	}
	p.metrics.IncBatchJob(forecasting.BatchCompleted)

	modelID := job.ModelID
	alertsJob, _, err := p.jobs.EnqueueIfIdle(dbc, jobstatus.TypeInventoryAlerts, services.EntityTrainedModel, &modelID, "batch:"+job.ID.String(), map[string]any{
		"model_id":     modelID.String(),
		"batch_job_id": job.ID.String(),
	})
	if err != nil {
		p.log.Warn("Enqueue inventory alerts failed", "batch_job_id", job.ID, "error", err)
	}

	res := map[string]any{
		"batch_job_id":          job.ID,
		"model_id":              modelID,
		"total_predictions":     total,
		"completed_predictions": job.CompletedCount,
		"failed_predictions":    job.FailedCount,
	}
	if alertsJob != nil {
		res["alerts_job_id"] = alertsJob.ID
	}
	p.log.Info("Batch finished", "batch_job_id", job.ID, "total", total, "failed", job.FailedCount)
	jc.Succeed("done", res)
	return nil
}

// loadModel returns the model pinned at submit. A batch that has not started
// yet also requires it to still be the active model; a resumed batch keeps it.
func (p *Pipeline) loadModel(ctx context.Context, id uuid.UUID, requireActive bool) (*services.LoadedModel, error) {
	m, err := p.registry.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requireActive && !m.IsActive {
		return nil, fmt.Errorf("model %s is no longer active", id)
	}
	return p.registry.LoadArtifact(ctx, m)
}

func (p *Pipeline) plan(dbc dbctx.Context, job *types.BatchJob) (plan, error) {
	from, to := civildate.FromTime(job.DateStart), civildate.FromTime(job.DateEnd)
	stores, err := p.stores.ListActive(dbc, decodeCodes(job.StoresFilter))
	if err != nil {
		return plan{}, fmt.Errorf("list stores: %w", err)
	}
	products, err := p.products.ListActive(dbc, decodeCodes(job.ProductsFilter))
	if err != nil {
		return plan{}, fmt.Errorf("list products: %w", err)
	}
	pl := plan{dates: civildate.Range(from, to)}
	for _, s := range stores {
		pl.stores = append(pl.stores, s.StoreCode)
	}
	for _, pr := range products {
		pl.products = append(pl.products, pr.SKU)
	}
	return pl, nil
}

// runChunk evaluates items [start, end) with bounded parallelism. Rows come
// back in item order; a nil prediction counts as not ready, an error or
// timeout as failed.
func (p *Pipeline) runChunk(ctx context.Context, lm *services.LoadedModel, pl plan, start, end int) ([]*types.Prediction, int, int) {
	n := end - start
	results := make([]*services.PredictionResult, n)
	errs := make([]error, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Parallelism)
	for i := start; i < end; i++ {
		g.Go(func() error {
			store, sku, date := pl.item(i)
			ictx, cancel := context.WithTimeout(gctx, p.opts.ItemTimeout)
			defer cancel()
			res, err := p.predictor.PredictWith(ictx, lm, store, sku, date)
			if err == nil && ictx.Err() != nil {
				err = ictx.Err()
			}
			results[i-start], errs[i-start] = res, err
			return nil
		})
	}
	_ = g.Wait()

	rows := make([]*types.Prediction, 0, n)
	notReady, failed := 0, 0
	for i := 0; i < n; i++ {
		switch {
		case errs[i] != nil:
			failed++
			store, sku, date := pl.item(start + i)
			p.log.Debug("Batch item failed", "store_id", store, "sku_id", sku, "date", date, "error", errs[i])
		case results[i] == nil:
			notReady++
		default:
			r := results[i]
			rows = append(rows, &types.Prediction{
				ModelID:         r.ModelID,
				StoreID:         r.StoreID,
				SKU:             r.SKU,
				TargetDate:      civildate.ToTime(r.Date),
				PredictedDemand: r.Demand,
				ConfidenceLower: r.Lower,
				ConfidenceUpper: r.Upper,
			})
		}
	}
	return rows, notReady, failed
}

func (p *Pipeline) fail(jc *jobrt.Context, job *types.BatchJob, stage string, err error) {
	now := time.Now().UTC()
	if _, uErr := p.batches.Transition(dbctx.Context{Ctx: context.WithoutCancel(jc.Ctx)}, job.ID,
		[]string{forecasting.BatchPending, forecasting.BatchProcessing}, forecasting.BatchFailed,
		map[string]interface{}{"error_log": err.Error(), "finished_at": now},
	); uErr != nil {
		p.log.Error("Batch fail transition failed", "batch_job_id", job.ID, "error", uErr)
	}
	p.metrics.IncBatchJob(forecasting.BatchFailed)
	jc.Fail(stage, err)
}

func decodeCodes(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	_ = json.Unmarshal(raw, &out)
	return out
}
