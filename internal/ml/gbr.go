package ml

import (
	"encoding/json"
	"fmt"
)

// GradientBoosting is least-squares gradient boosting over regression trees.
type GradientBoosting struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`

	Init     float64           `json:"init"`
	Trees    []*regressionTree `json:"trees"`
	Features int               `json:"n_features"`
}

func gbrDefaults() Params {
	return Params{
		"n_estimators":      100,
		"learning_rate":     0.1,
		"max_depth":         6,
		"min_samples_split": 10,
		"min_samples_leaf":  4,
	}
}

func newGBRFromParams(p Params) (Regressor, error) {
	g := &GradientBoosting{
		NEstimators:     p.Int("n_estimators", 100),
		LearningRate:    p.Float("learning_rate", 0.1),
		MaxDepth:        p.Int("max_depth", 6),
		MinSamplesSplit: p.Int("min_samples_split", 10),
		MinSamplesLeaf:  p.Int("min_samples_leaf", 4),
	}
	switch {
	case g.NEstimators < 1:
		return nil, fmt.Errorf("n_estimators must be >= 1")
	case g.LearningRate <= 0:
		return nil, fmt.Errorf("learning_rate must be > 0")
	case g.MaxDepth < 1:
		return nil, fmt.Errorf("max_depth must be >= 1")
	case g.MinSamplesSplit < 2:
		return nil, fmt.Errorf("min_samples_split must be >= 2")
	case g.MinSamplesLeaf < 1:
		return nil, fmt.Errorf("min_samples_leaf must be >= 1")
	}
	return g, nil
}

func restoreGBR(state json.RawMessage) (Regressor, error) {
	var g GradientBoosting
	if err := json.Unmarshal(state, &g); err != nil {
		return nil, fmt.Errorf("decode gradient boosting state: %w", err)
	}
	if g.Features <= 0 {
		return nil, fmt.Errorf("gradient boosting state has no feature count")
	}
	return &g, nil
}

func (g *GradientBoosting) Algorithm() string { return AlgorithmGradientBoosting }

func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	width, err := checkXY(X, y)
	if err != nil {
		return err
	}
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	g.Features = width
	g.Init = meanAt(y, idx)
	g.Trees = g.Trees[:0]

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.Init
	}
	resid := make([]float64, n)
	cfg := treeConfig{maxDepth: g.MaxDepth, minSamplesSplit: g.MinSamplesSplit, minSamplesLeaf: g.MinSamplesLeaf}
	for m := 0; m < g.NEstimators; m++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		t := fitTree(X, resid, idx, cfg)
		g.Trees = append(g.Trees, t)
		for i := range pred {
			pred[i] += g.LearningRate * t.predict(X[i])
		}
	}
	return nil
}

func (g *GradientBoosting) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != g.Features {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(x), g.Features)
		}
		v := g.Init
		for _, t := range g.Trees {
			v += g.LearningRate * t.predict(x)
		}
		out[i] = v
	}
	return out, nil
}

func (g *GradientBoosting) State() (json.RawMessage, error) {
	if g.Features == 0 {
		return nil, fmt.Errorf("model is not fitted")
	}
	return json.Marshal(g)
}
