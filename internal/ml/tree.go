package ml

import (
	"sort"
)

// node is a flattened regression tree node. Leaves have Feature == -1.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type regressionTree struct {
	Nodes []node `json:"nodes"`
}

type treeConfig struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

func (t *regressionTree) predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 || n.Feature >= len(x) {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// fitTree grows a least-squares tree on the rows in idx.
func fitTree(X [][]float64, r []float64, idx []int, cfg treeConfig) *regressionTree {
	t := &regressionTree{}
	t.grow(X, r, idx, 0, cfg)
	return t
}

func (t *regressionTree) grow(X [][]float64, r []float64, idx []int, depth int, cfg treeConfig) int {
	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, node{Feature: -1, Value: meanAt(r, idx)})

	if depth >= cfg.maxDepth || len(idx) < cfg.minSamplesSplit || len(idx) < 2*cfg.minSamplesLeaf {
		return self
	}
	feature, threshold, ok := bestSplit(X, r, idx, cfg.minSamplesLeaf)
	if !ok {
		return self
	}
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := t.grow(X, r, left, depth+1, cfg)
	rr := t.grow(X, r, right, depth+1, cfg)
	t.Nodes[self].Feature = feature
	t.Nodes[self].Threshold = threshold
	t.Nodes[self].Left = l
	t.Nodes[self].Right = rr
	return self
}

// bestSplit scans every feature for the threshold with the largest reduction in
// squared error, honoring the leaf size floor.
func bestSplit(X [][]float64, r []float64, idx []int, minLeaf int) (int, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += r[i]
	}
	width := len(X[idx[0]])
	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, n)
	for f := 0; f < width; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += r[order[k]]
			nl := k + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			lo, hi := X[order[k]][f], X[order[k+1]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			// SSE reduction up to a constant: sum_l^2/n_l + sum_r^2/n_r - total^2/n.
			gain := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr) - total*total/float64(n)
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func meanAt(r []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += r[i]
	}
	return s / float64(len(idx))
}
