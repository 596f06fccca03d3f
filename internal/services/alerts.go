package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/smartinventory-backend/internal/data/repos"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/domain/forecasting"
	"github.com/yungbote/smartinventory-backend/internal/observability"
	"github.com/yungbote/smartinventory-backend/internal/pkg/civildate"
	"github.com/yungbote/smartinventory-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/pkg/pointers"
)

type AlertThresholds struct {
	SafetyFactor    float64 `yaml:"safety_factor"`
	OverstockFactor float64 `yaml:"overstock_factor"`
	LookaheadDays   int     `yaml:"lookahead_days"`
}

func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{SafetyFactor: 1.5, OverstockFactor: 4, LookaheadDays: 30}
}

// EvaluateAlert applies the stockout rule, then the overstock rule, to one
// prediction. It returns nil when neither fires.
func EvaluateAlert(storeID, sku string, onHand int, demand float64, today civil.Date, th AlertThresholds) *types.Alert {
	inv := float64(onHand)
	switch {
	case inv < demand*th.SafetyFactor:
		days := int(math.Floor(inv / math.Max(demand, 1)))
		if days < 1 {
			days = 1
		}
		reorder := int(math.Round(2 * demand))
		stockout := civildate.ToTime(today.AddDays(days))
		return &types.Alert{
			StoreID:               storeID,
			SKU:                   sku,
			AlertType:             forecasting.AlertStockoutRisk,
			Priority:              stockoutPriority(days),
			Message:               fmt.Sprintf("Potential stockout in %d days. Current inventory: %d, Predicted demand: %.1f", days, onHand, demand),
			PredictedStockoutDate: &stockout,
			CurrentInventory:      pointers.Int(onHand),
			RecommendedAction:     fmt.Sprintf("Reorder %d units to maintain safety stock", reorder),
			RecommendedQuantity:   pointers.Int(reorder),
		}
	case inv > demand*th.OverstockFactor:
		return &types.Alert{
			StoreID:           storeID,
			SKU:               sku,
			AlertType:         forecasting.AlertOverstockRisk,
			Priority:          forecasting.PriorityLow,
			Message:           fmt.Sprintf("Potential overstock. Current inventory: %d, Predicted demand: %.1f", onHand, demand),
			CurrentInventory:  pointers.Int(onHand),
			RecommendedAction: "Consider promotional activities to reduce inventory",
		}
	}
	return nil
}

func stockoutPriority(days int) string {
	switch {
	case days <= 3:
		return forecasting.PriorityCritical
	case days <= 7:
		return forecasting.PriorityHigh
	case days <= 14:
		return forecasting.PriorityMedium
	default:
		return forecasting.PriorityLow
	}
}

type AlertRunSummary struct {
	ModelID     uuid.UUID `json:"model_id"`
	Scanned     int       `json:"predictions_scanned"`
	Created     int       `json:"alerts_created"`
	Outstanding int       `json:"alerts_already_open"`
	NoInventory int       `json:"series_without_inventory"`
}

type AckResult struct {
	Alert               *types.Alert `json:"alert"`
	AlreadyAcknowledged bool         `json:"already_acknowledged"`
}

type AlertEngine interface {
	// Generate scans predictions of modelID (the active model when nil) dated
	// within the lookahead window and raises deduplicated alerts.
	Generate(ctx context.Context, modelID *uuid.UUID) (*AlertRunSummary, error)
	Acknowledge(ctx context.Context, id uuid.UUID, actor string) (*AckResult, error)
	List(ctx context.Context, f repos.AlertFilter) ([]*types.Alert, error)
}

type alertEngine struct {
	db        *gorm.DB
	log       *logger.Logger
	models    repos.TrainedModelRepo
	preds     repos.PredictionRepo
	obs       repos.ObservationRepo
	alerts    repos.AlertRepo
	publisher AlertPublisher
	metrics   *observability.Metrics
	th        AlertThresholds
	today     func() civil.Date
}

func NewAlertEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	models repos.TrainedModelRepo,
	preds repos.PredictionRepo,
	obs repos.ObservationRepo,
	alerts repos.AlertRepo,
	publisher AlertPublisher,
	metrics *observability.Metrics,
	th AlertThresholds,
) AlertEngine {
	def := DefaultAlertThresholds()
	if th.SafetyFactor <= 0 {
		th.SafetyFactor = def.SafetyFactor
	}
	if th.OverstockFactor <= 0 {
		th.OverstockFactor = def.OverstockFactor
	}
	if th.LookaheadDays <= 0 {
		th.LookaheadDays = def.LookaheadDays
	}
	if publisher == nil {
		publisher = NopAlertPublisher{}
	}
	return &alertEngine{
		db:        db,
		log:       baseLog.With("service", "AlertEngine"),
		models:    models,
		preds:     preds,
		obs:       obs,
		alerts:    alerts,
		publisher: publisher,
		metrics:   metrics,
		th:        th,
		today:     civildate.Today,
	}
}

// WithAlertClock overrides the engine's notion of today.
func WithAlertClock(e AlertEngine, today func() civil.Date) AlertEngine {
	if ae, ok := e.(*alertEngine); ok && today != nil {
		cp := *ae
		cp.today = today
		return &cp
	}
	return e
}

func (e *alertEngine) Generate(ctx context.Context, modelID *uuid.UUID) (*AlertRunSummary, error) {
	dbc := dbctx.Context{Ctx: ctx}
	var id uuid.UUID
	if modelID != nil && *modelID != uuid.Nil {
		id = *modelID
	} else {
		active, err := e.models.GetActive(dbc)
		if err != nil {
			return nil, fmt.Errorf("get active model: %w", err)
		}
		if active == nil {
			return nil, apperrors.ErrNoActiveModel
		}
		id = active.ID
	}

	today := e.today()
	preds, err := e.preds.ListInWindow(dbc, id, today, today.AddDays(e.th.LookaheadDays))
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	sum := &AlertRunSummary{ModelID: id}
	inventory := map[[2]string]*int{}
	var fresh []*types.Alert
	for _, p := range preds {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Scanned++
		key := [2]string{p.StoreID, p.SKU}
		onHand, seen := inventory[key]
		if !seen {
			latest, err := e.obs.Latest(dbc, p.StoreID, p.SKU)
			if err != nil {
				return sum, fmt.Errorf("latest inventory %s/%s: %w", p.StoreID, p.SKU, err)
			}
			if latest != nil {
				onHand = pointers.Int(latest.OnHand)
			}
			inventory[key] = onHand
		}
		if onHand == nil {
			sum.NoInventory++
			continue
		}
		candidate := EvaluateAlert(p.StoreID, p.SKU, *onHand, p.PredictedDemand, today, e.th)
		if candidate == nil {
			continue
		}
		row, created, err := e.alerts.GetOrCreateOpen(dbc, candidate)
		if err != nil {
			return sum, fmt.Errorf("create alert %s/%s: %w", p.StoreID, p.SKU, err)
		}
		if !created {
			sum.Outstanding++
			continue
		}
		sum.Created++
		e.metrics.IncAlertCreated(row.AlertType, row.Priority)
		fresh = append(fresh, row)
	}
	if len(fresh) > 0 {
		if err := e.publisher.PublishAlerts(ctx, fresh); err != nil {
			e.log.Warn("Alert publish failed", "count", len(fresh), "error", err)
		}
	}
	e.log.Info("Alert scan finished", "model_id", id, "scanned", sum.Scanned, "created", sum.Created, "outstanding", sum.Outstanding)
	return sum, nil
}

func (e *alertEngine) Acknowledge(ctx context.Context, id uuid.UUID, actor string) (*AckResult, error) {
	if id == uuid.Nil {
		return nil, apperrors.Validation("alert id is required")
	}
	row, already, err := e.alerts.Acknowledge(dbctx.Context{Ctx: ctx}, id, actor, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	return &AckResult{Alert: row, AlreadyAcknowledged: already}, nil
}

func (e *alertEngine) List(ctx context.Context, f repos.AlertFilter) ([]*types.Alert, error) {
	return e.alerts.List(dbctx.Context{Ctx: ctx}, f)
}
