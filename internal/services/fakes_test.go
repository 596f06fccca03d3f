package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/features"
)

// spyRegressor returns a constant and counts Predict calls.
type spyRegressor struct {
	value float64
	calls atomic.Int64
}

func (s *spyRegressor) Algorithm() string                { return "spy" }
func (s *spyRegressor) Fit([][]float64, []float64) error { return nil }
func (s *spyRegressor) State() (json.RawMessage, error)  { return json.RawMessage(`{}`), nil }
func (s *spyRegressor) Predict(X [][]float64) ([]float64, error) {
	s.calls.Add(1)
	out := make([]float64, len(X))
	for i := range out {
		out[i] = s.value
	}
	return out, nil
}

// fakeRegistry serves a fixed LoadedModel. Methods the services under test
// never call are left to the embedded nil interface.
type fakeRegistry struct {
	ModelRegistry
	lm    *LoadedModel
	mu    sync.Mutex
	hooks []func(uuid.UUID)
}

func (f *fakeRegistry) Current(context.Context) (*LoadedModel, error) { return f.lm, nil }

func (f *fakeRegistry) OnChange(fn func(uuid.UUID)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, fn)
}

func (f *fakeRegistry) fire(id uuid.UUID) {
	f.mu.Lock()
	hooks := append([]func(uuid.UUID){}, f.hooks...)
	f.mu.Unlock()
	for _, fn := range hooks {
		fn(id)
	}
}

func spyModel(t *testing.T, m *types.TrainedModel, value float64) (*LoadedModel, *spyRegressor) {
	t.Helper()
	spy := &spyRegressor{value: value}
	enc := &features.Encoders{
		Store:   features.FitLabelEncoder([]string{"S1", "S2"}),
		Product: features.FitLabelEncoder([]string{"P1", "P2"}),
	}
	enc.Warm()
	return &LoadedModel{Model: m, Regressor: spy, Encoders: enc, Schema: features.DefaultSchema}, spy
}

type spyPublisher struct {
	mu     sync.Mutex
	alerts []*types.Alert
}

func (p *spyPublisher) PublishAlerts(_ context.Context, alerts []*types.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alerts...)
	return nil
}
