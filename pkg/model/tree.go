package model

import (
	"math/rand"
	"sort"
)

// treeNode is one node of a binary decision tree. Leaves carry the positive
// fraction of the training rows that reached them.
type treeNode struct {
	Leaf      bool      `json:"leaf"`
	Prob      float64   `json:"prob,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Prob
}

type treeParams struct {
	maxDepth    int
	minLeaf     int
	featureSub  int        // features considered per split; 0 = all
	rng         *rand.Rand // nil unless featureSub > 0
}

// growTree builds a CART classification tree over rows (indices into X)
// by greedy gini-impurity splits.
func growTree(X [][]float64, y []int, rows []int, depth int, p treeParams) *treeNode {
	pos := 0
	for _, i := range rows {
		pos += y[i]
	}
	prob := float64(pos) / float64(len(rows))

	if depth >= p.maxDepth || len(rows) <= p.minLeaf || pos == 0 || pos == len(rows) {
		return &treeNode{Leaf: true, Prob: prob}
	}

	feature, threshold, ok := bestSplit(X, y, rows, p)
	if !ok {
		return &treeNode{Leaf: true, Prob: prob}
	}

	var left, right []int
	for _, i := range rows {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{Leaf: true, Prob: prob}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(X, y, left, depth+1, p),
		Right:     growTree(X, y, right, depth+1, p),
	}
}

func bestSplit(X [][]float64, y []int, rows []int, p treeParams) (feature int, threshold float64, ok bool) {
	d := len(X[rows[0]])
	candidates := make([]int, d)
	for j := range candidates {
		candidates[j] = j
	}
	if p.featureSub > 0 && p.featureSub < d {
		p.rng.Shuffle(d, func(a, b int) { candidates[a], candidates[b] = candidates[b], candidates[a] })
		candidates = candidates[:p.featureSub]
		sort.Ints(candidates) // deterministic tie resolution across subsets
	}

	total := len(rows)
	totalPos := 0
	for _, i := range rows {
		totalPos += y[i]
	}

	best := gini(totalPos, total-totalPos) // must improve on the parent
	ok = false

	order := append([]int(nil), rows...)
	for _, j := range candidates {
		sort.Slice(order, func(a, b int) bool { return X[order[a]][j] < X[order[b]][j] })

		leftPos, leftN := 0, 0
		for k := 0; k < total-1; k++ {
			leftPos += y[order[k]]
			leftN++

			if X[order[k]][j] == X[order[k+1]][j] {
				continue // can't split between equal values
			}

			rightPos := totalPos - leftPos
			rightN := total - leftN
			impurity := (float64(leftN)*gini(leftPos, leftN-leftPos) +
				float64(rightN)*gini(rightPos, rightN-rightPos)) / float64(total)

			if impurity < best {
				best = impurity
				feature = j
				threshold = (X[order[k]][j] + X[order[k+1]][j]) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func gini(pos, neg int) float64 {
	n := pos + neg
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}
