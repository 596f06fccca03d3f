package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	jobstatus "github.com/yungbote/smartinventory-backend/internal/domain/jobs"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type BatchRequest struct {
	StoreIDs    []string   `json:"store_ids,omitempty"`
	SKUs        []string   `json:"sku_ids,omitempty"`
	From        civil.Date `json:"date_from"`
	To          civil.Date `json:"date_to"`
	RequestedBy string     `json:"requested_by,omitempty"`
}

type BatchService interface {
	// Submit records a pending BatchJob pinned to the active model and queues
	// its batch_predict run in the same transaction.
	Submit(ctx context.Context, req BatchRequest) (*types.BatchJob, error)
	Get(ctx context.Context, id uuid.UUID) (*types.BatchJob, error)
	List(ctx context.Context, limit int) ([]*types.BatchJob, error)
	Cancel(ctx context.Context, id uuid.UUID) (*types.BatchJob, error)
}

type batchService struct {
	db      *gorm.DB
	log     *logger.Logger
	batches repos.BatchJobRepo
	models  repos.TrainedModelRepo
	jobs    JobService
}

func NewBatchService(db *gorm.DB, baseLog *logger.Logger, batches repos.BatchJobRepo, models repos.TrainedModelRepo, jobs JobService) BatchService {
	return &batchService{
		db:      db,
		log:     baseLog.With("service", "BatchService"),
		batches: batches,
		models:  models,
		jobs:    jobs,
	}
}

func (s *batchService) Submit(ctx context.Context, req BatchRequest) (*types.BatchJob, error) {
	if !req.From.IsValid() || !req.To.IsValid() {
		return nil, apperrors.Validation("date_from and date_to are required")
	}
	if req.To.Before(req.From) {
		return nil, apperrors.Validation("date_from %s is after date_to %s", req.From, req.To)
	}
	active, err := s.models.GetActive(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, fmt.Errorf("get active model: %w", err)
	}
	if active == nil {
		return nil, apperrors.ErrNoActiveModel
	}

	job := &types.BatchJob{
		ID:             uuid.New(),
		ModelID:        active.ID,
		Status:         forecasting.BatchPending,
		DateStart:      civildate.ToTime(req.From),
		DateEnd:        civildate.ToTime(req.To),
		StoresFilter:   mustJSON(cleanCodes(req.StoreIDs)),
		ProductsFilter: mustJSON(cleanCodes(req.SKUs)),
		RequestedBy:    strings.TrimSpace(req.RequestedBy),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.batches.Create(inner, job); err != nil {
			return fmt.Errorf("create batch job: %w", err)
		}
		entityID := job.ID
		run, err := s.jobs.Enqueue(inner, jobstatus.TypeBatchPredict, EntityBatchJob, &entityID, job.RequestedBy, map[string]any{
			"batch_job_id": job.ID.String(),
		})
		if err != nil {
			return err
		}
		job.TaskID = &run.ID
		return s.batches.UpdateFields(inner, job.ID, map[string]interface{}{"task_id": run.ID})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Batch submitted", "batch_job_id", job.ID, "model_id", active.ID, "from", req.From, "to", req.To)
	return job, nil
}

func (s *batchService) Get(ctx context.Context, id uuid.UUID) (*types.BatchJob, error) {
	job, err := s.batches.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("batch job %s: %w", id, apperrors.ErrNotFound)
	}
	return job, nil
}

func (s *batchService) List(ctx context.Context, limit int) ([]*types.BatchJob, error) {
	return s.batches.List(dbctx.Context{Ctx: ctx}, limit)
}

// Cancel goes through the job_run so the worker and the chunk loop agree.
func (s *batchService) Cancel(ctx context.Context, id uuid.UUID) (*types.BatchJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, fmt.Errorf("batch job %s is %s: %w", id, job.Status, apperrors.ErrConflict)
	}
	if job.TaskID != nil {
		if _, err := s.jobs.Cancel(dbctx.Context{Ctx: ctx}, *job.TaskID); err != nil {
			return nil, err
		}
	} else if _, err := s.batches.RequestCancel(dbctx.Context{Ctx: ctx}, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func cleanCodes(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
