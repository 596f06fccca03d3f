package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/artifacts"
	redisbus "github.com/yungbote/smartinventory-backend/internal/clients/redis"
	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/features"
	"github.com/yungbote/smartinventory-backend/internal/ml"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

// LoadedModel is a registry row together with its restored artifact.
// Instances are shared across goroutines and never mutated after publication.
type LoadedModel struct {
	Model     *types.TrainedModel
	Regressor ml.Regressor
	Encoders  *features.Encoders
	Schema    features.Schema
}

type ModelRegistry interface {
	GetActive(ctx context.Context) (*types.TrainedModel, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.TrainedModel, error)
	List(ctx context.Context, limit int) ([]*types.TrainedModel, error)
	// Activate makes id the only active model and drops every cached artifact.
	Activate(ctx context.Context, id uuid.UUID) (*types.TrainedModel, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	// LoadArtifact wraps ErrArtifactMissing or ErrArtifactCorrupt on failure.
	LoadArtifact(ctx context.Context, m *types.TrainedModel) (*LoadedModel, error)
	// Current is the active model with its artifact, or nil when there is none
	// or its artifact cannot be loaded.
	Current(ctx context.Context) (*LoadedModel, error)
	// Invalidate drops cached artifacts; uuid.Nil drops all of them.
	Invalidate(id uuid.UUID)
	// OnChange registers fn to run after every local or remote activation change.
	OnChange(fn func(modelID uuid.UUID))
}

type ModelRegistryOptions struct {
	CacheTTL    time.Duration
	LoadTimeout time.Duration
}

type modelRegistry struct {
	db      *gorm.DB
	log     *logger.Logger
	models  repos.TrainedModelRepo
	store   artifacts.Store
	bus     redisbus.ModelBus
	metrics *observability.Metrics
	opts    ModelRegistryOptions

	cache    *expirable.LRU[uuid.UUID, *LoadedModel]
	loads    singleflight.Group
	hooksMu  sync.RWMutex
	onChange []func(uuid.UUID)
}

// NewModelRegistry builds the registry. bus may be nil for single-process deployments.
func NewModelRegistry(
	db *gorm.DB,
	baseLog *logger.Logger,
	models repos.TrainedModelRepo,
	store artifacts.Store,
	bus redisbus.ModelBus,
	metrics *observability.Metrics,
	opts ModelRegistryOptions,
) ModelRegistry {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &modelRegistry{
		db:      db,
		log:     baseLog.With("service", "ModelRegistry"),
		models:  models,
		store:   store,
		bus:     bus,
		metrics: metrics,
		opts:    opts,
		// Zero size is unbounded; only expiry and invalidation evict.
		cache: expirable.NewLRU[uuid.UUID, *LoadedModel](0, nil, opts.CacheTTL),
	}
}

func (r *modelRegistry) GetActive(ctx context.Context) (*types.TrainedModel, error) {
	return r.models.GetActive(dbctx.Context{Ctx: ctx})
}

func (r *modelRegistry) GetByID(ctx context.Context, id uuid.UUID) (*types.TrainedModel, error) {
	m, err := r.models.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("model %s: %w", id, apperrors.ErrNotFound)
	}
	return m, nil
}

func (r *modelRegistry) List(ctx context.Context, limit int) ([]*types.TrainedModel, error) {
	return r.models.List(dbctx.Context{Ctx: ctx}, limit)
}

func (r *modelRegistry) Activate(ctx context.Context, id uuid.UUID) (*types.TrainedModel, error) {
	if err := r.models.SetActiveByID(dbctx.Context{Ctx: ctx}, id); err != nil {
		return nil, fmt.Errorf("activate model %s: %w", id, err)
	}
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.log.Info("Model activated", "model_id", id, "name", m.Name, "version", m.Version)
	r.changed(id)
	r.broadcast(ctx, redisbus.ModelEvent{Kind: redisbus.ModelActivated, ModelID: id})
	return m, nil
}

func (r *modelRegistry) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := r.models.Deactivate(dbctx.Context{Ctx: ctx}, id); err != nil {
		return fmt.Errorf("deactivate model %s: %w", id, err)
	}
	r.log.Info("Model deactivated", "model_id", id)
	r.changed(id)
	r.broadcast(ctx, redisbus.ModelEvent{Kind: redisbus.ModelDeactivated, ModelID: id})
	return nil
}

func (r *modelRegistry) broadcast(ctx context.Context, ev redisbus.ModelEvent) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, ev); err != nil {
		r.log.Warn("Model event publish failed", "kind", ev.Kind, "model_id", ev.ModelID, "error", err)
	}
}

// HandleRemoteModelEvent applies an event published by another process.
func HandleRemoteModelEvent(reg ModelRegistry, ev redisbus.ModelEvent) {
	if r, ok := reg.(*modelRegistry); ok {
		r.changed(ev.ModelID)
		return
	}
	reg.Invalidate(uuid.Nil)
}

func (r *modelRegistry) changed(id uuid.UUID) {
	r.Invalidate(uuid.Nil)
	r.hooksMu.RLock()
	hooks := append([]func(uuid.UUID){}, r.onChange...)
	r.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}
}

func (r *modelRegistry) OnChange(fn func(modelID uuid.UUID)) {
	if fn == nil {
		return
	}
	r.hooksMu.Lock()
	r.onChange = append(r.onChange, fn)
	r.hooksMu.Unlock()
}

func (r *modelRegistry) Invalidate(id uuid.UUID) {
	if id == uuid.Nil {
		r.cache.Purge()
		return
	}
	r.cache.Remove(id)
}

func (r *modelRegistry) cached(id uuid.UUID) *LoadedModel {
	lm, _ := r.cache.Get(id)
	return lm
}

func (r *modelRegistry) LoadArtifact(ctx context.Context, m *types.TrainedModel) (*LoadedModel, error) {
	if m == nil {
		return nil, fmt.Errorf("nil model")
	}
	if lm := r.cached(m.ID); lm != nil {
		return lm, nil
	}
	v, err, _ := r.loads.Do(m.ID.String(), func() (interface{}, error) {
		if lm := r.cached(m.ID); lm != nil {
			return lm, nil
		}
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.LoadTimeout)
		defer cancel()
		start := time.Now()
		lm, err := r.load(loadCtx, m)
		r.metrics.ObserveArtifactLoad(loadStatus(err), time.Since(start))
		if err != nil {
			return nil, err
		}
		r.cache.Add(m.ID, lm)
		return lm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*LoadedModel), nil
}

func (r *modelRegistry) load(ctx context.Context, m *types.TrainedModel) (*LoadedModel, error) {
	if r.store == nil {
		return nil, fmt.Errorf("%w: no artifact store configured", apperrors.ErrArtifactMissing)
	}
	b, err := r.store.Load(ctx, m.ArtifactPath)
	if err != nil {
		return nil, err
	}
	reg, err := b.Regressor()
	if err != nil {
		return nil, err
	}
	b.Encoders.Warm()
	return &LoadedModel{Model: m, Regressor: reg, Encoders: b.Encoders, Schema: b.Schema}, nil
}

func loadStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.Is(err, apperrors.ErrArtifactMissing):
		return "missing"
	case apperrors.Is(err, apperrors.ErrArtifactCorrupt):
		return "corrupt"
	default:
		return "error"
	}
}

func (r *modelRegistry) Current(ctx context.Context) (*LoadedModel, error) {
	m, err := r.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active model: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	lm, err := r.LoadArtifact(ctx, m)
	if err != nil {
		r.log.Error("Active model artifact unavailable", "model_id", m.ID, "path", m.ArtifactPath, "error", err)
		return nil, nil
	}
	return lm, nil
}
