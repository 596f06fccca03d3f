package ml

import "math"

func MAE(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var s float64
	for i := range y {
		s += math.Abs(y[i] - pred[i])
	}
	return s / float64(len(y))
}

func RMSE(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var s float64
	for i := range y {
		d := y[i] - pred[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(y)))
}

// MAPE is in percent. The 1e-8 offset keeps zero-sales days finite.
func MAPE(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var s float64
	for i := range y {
		s += math.Abs((y[i] - pred[i]) / (y[i] + 1e-8))
	}
	return s / float64(len(y)) * 100
}

// ChronoSplit splits at floor(n*(1-testFrac)) without shuffling.
func ChronoSplit(n int, testFrac float64) int {
	if n <= 1 {
		return n
	}
	cut := int(float64(n) * (1 - testFrac))
	if cut < 1 {
		cut = 1
	}
	if cut > n {
		cut = n
	}
	return cut
}
