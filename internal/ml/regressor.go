// Package ml holds the regressors behind the Fit/Predict contract. Feature
// engineering and serving never depend on a concrete algorithm.
package ml

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Regressor interface {
	Algorithm() string
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
	// State is the JSON form restored by Restore.
	State() (json.RawMessage, error)
}

const (
	AlgorithmGradientBoosting = "gradient_boosting"
	AlgorithmRidge            = "ridge"
	DefaultAlgorithm          = AlgorithmGradientBoosting
)

// Params are user-supplied hyperparameters. Unknown keys are ignored by the
// algorithm that does not use them.
type Params map[string]any

type factory struct {
	build   func(Params) (Regressor, error)
	restore func(json.RawMessage) (Regressor, error)
	defs    Params
}

var algorithms = map[string]factory{
	AlgorithmGradientBoosting: {build: newGBRFromParams, restore: restoreGBR, defs: gbrDefaults()},
	AlgorithmRidge:            {build: newRidgeFromParams, restore: restoreRidge, defs: ridgeDefaults()},
}

func Algorithms() []string {
	out := make([]string, 0, len(algorithms))
	for k := range algorithms {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(algorithm string) string {
	a := strings.ToLower(strings.TrimSpace(algorithm))
	if a == "" {
		return DefaultAlgorithm
	}
	return a
}

// Defaults returns the default hyperparameters for algorithm merged with overrides.
func Defaults(algorithm string, overrides Params) (Params, error) {
	f, ok := algorithms[normalize(algorithm)]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q (have %s)", algorithm, strings.Join(Algorithms(), ", "))
	}
	out := Params{}
	for k, v := range f.defs {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out, nil
}

// New builds an unfitted regressor.
func New(algorithm string, params Params) (Regressor, error) {
	algorithm = normalize(algorithm)
	merged, err := Defaults(algorithm, params)
	if err != nil {
		return nil, err
	}
	return algorithms[algorithm].build(merged)
}

// Restore rebuilds a fitted regressor from State output.
func Restore(algorithm string, state json.RawMessage) (Regressor, error) {
	f, ok := algorithms[normalize(algorithm)]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q", algorithm)
	}
	if len(state) == 0 {
		return nil, fmt.Errorf("empty model state")
	}
	return f.restore(state)
}

func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

func checkXY(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("empty training matrix")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("X has %d rows, y has %d", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, fmt.Errorf("training matrix has no columns")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d columns, want %d", i, len(row), width)
		}
	}
	return width, nil
}
