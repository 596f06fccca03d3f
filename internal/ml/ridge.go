package ml

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ridge is L2-regularized least squares on standardized features.
type Ridge struct {
	Alpha float64 `json:"alpha"`

	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

func ridgeDefaults() Params { return Params{"alpha": 1.0} }

func newRidgeFromParams(p Params) (Regressor, error) {
	a := p.Float("alpha", 1.0)
	if a < 0 {
		return nil, fmt.Errorf("alpha must be >= 0")
	}
	return &Ridge{Alpha: a}, nil
}

func restoreRidge(state json.RawMessage) (Regressor, error) {
	var r Ridge
	if err := json.Unmarshal(state, &r); err != nil {
		return nil, fmt.Errorf("decode ridge state: %w", err)
	}
	if len(r.Weights) == 0 || len(r.Weights) != len(r.Mean) || len(r.Mean) != len(r.Scale) {
		return nil, fmt.Errorf("ridge state has inconsistent dimensions")
	}
	return &r, nil
}

func (r *Ridge) Algorithm() string { return AlgorithmRidge }

func (r *Ridge) Fit(X [][]float64, y []float64) error {
	width, err := checkXY(X, y)
	if err != nil {
		return err
	}
	n := float64(len(X))
	r.Mean = make([]float64, width)
	r.Scale = make([]float64, width)
	for _, row := range X {
		for j, v := range row {
			r.Mean[j] += v
		}
	}
	for j := range r.Mean {
		r.Mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - r.Mean[j]
			r.Scale[j] += d * d
		}
	}
	for j := range r.Scale {
		r.Scale[j] = math.Sqrt(r.Scale[j] / n)
		if r.Scale[j] == 0 {
			r.Scale[j] = 1
		}
	}
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= n

	// Normal equations (Z'Z + alpha*I) w = Z'(y - yMean).
	a := mat.NewSymDense(width, nil)
	b := mat.NewVecDense(width, nil)
	z := make([]float64, width)
	for i, row := range X {
		for j, v := range row {
			z[j] = (v - r.Mean[j]) / r.Scale[j]
		}
		yc := y[i] - yMean
		for j := 0; j < width; j++ {
			b.SetVec(j, b.AtVec(j)+z[j]*yc)
			for k := j; k < width; k++ {
				a.SetSym(j, k, a.At(j, k)+z[j]*z[k])
			}
		}
	}
	for j := 0; j < width; j++ {
		a.SetSym(j, j, a.At(j, j)+r.Alpha+1e-9)
	}
	w, err := solveSPD(a, b)
	if err != nil {
		return err
	}
	r.Weights = w
	r.Intercept = yMean
	return nil
}

func (r *Ridge) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != len(r.Weights) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(x), len(r.Weights))
		}
		v := r.Intercept
		for j, xv := range x {
			v += r.Weights[j] * (xv - r.Mean[j]) / r.Scale[j]
		}
		out[i] = v
	}
	return out, nil
}

func (r *Ridge) State() (json.RawMessage, error) {
	if len(r.Weights) == 0 {
		return nil, fmt.Errorf("model is not fitted")
	}
	return json.Marshal(r)
}

// solveSPD solves a*x = b through a Cholesky factorization.
func solveSPD(a *mat.SymDense, b *mat.VecDense) ([]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("normal equations are not positive definite")
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}
	return mat.Col(nil, 0, &x), nil
}
