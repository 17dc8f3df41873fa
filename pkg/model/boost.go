package model

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/credfab/credfab/pkg/domain"
)

// GradientBoosting boosts regression stumps on the logistic loss: each
// round fits one stump to the residual (y - p) and adds it, damped by the
// learning rate, to the running logit.
//
// Training is fully deterministic; there is no sampling.
type GradientBoosting struct {
	NEstimators  int     `json:"nEstimators"`
	LearningRate float64 `json:"learningRate"`

	Base   float64 `json:"base"` // initial logit (log-odds of the base rate)
	Stumps []stump `json:"stumps"`
}

type stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
}

func (s stump) predict(x []float64) float64 {
	if x[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

func newGradientBoosting(p params) (*GradientBoosting, error) {
	n, err := p.int("n_estimators", 100)
	if err != nil {
		return nil, err
	}
	lr, err := p.float("learning_rate", 0.1)
	if err != nil {
		return nil, err
	}
	if n <= 0 || lr <= 0 {
		return nil, fmt.Errorf("n_estimators and learning_rate must be positive, got %d and %f", n, lr)
	}
	return &GradientBoosting{NEstimators: n, LearningRate: lr}, nil
}

func (m *GradientBoosting) Family() string { return FamilyGradientBoosting }

func (m *GradientBoosting) Train(ctx context.Context, train domain.Partition) error {
	if train.Len() == 0 {
		return fmt.Errorf("empty training partition")
	}
	X, y := asMatrix(train)
	n := len(X)

	rate := 0.0
	for _, v := range y {
		rate += float64(v)
	}
	rate /= float64(n)
	// clamp so the initial log-odds stay finite for one-class data
	rate = math.Min(math.Max(rate, 1e-6), 1-1e-6)
	m.Base = math.Log(rate / (1 - rate))

	logits := make([]float64, n)
	for i := range logits {
		logits[i] = m.Base
	}

	m.Stumps = make([]stump, 0, m.NEstimators)
	residual := make([]float64, n)

	for round := 0; round < m.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i := range residual {
			residual[i] = float64(y[i]) - sigmoid(logits[i])
		}

		s, ok := fitStump(X, residual)
		if !ok {
			break // nothing left to split on
		}
		m.Stumps = append(m.Stumps, s)

		for i, row := range X {
			logits[i] += m.LearningRate * s.predict(row)
		}
	}
	return nil
}

func (m *GradientBoosting) Score(fv domain.FeatureVector) float64 {
	z := m.Base
	for _, s := range m.Stumps {
		z += m.LearningRate * s.predict(fv.Values)
	}
	return sigmoid(z)
}

// fitStump finds the single split minimizing squared error against the
// residuals; leaf values are the residual means of each side.
func fitStump(X [][]float64, residual []float64) (stump, bool) {
	n := len(X)
	d := len(X[0])

	total := 0.0
	for _, r := range residual {
		total += r
	}

	best := stump{}
	bestGain := 0.0
	found := false

	for j := 0; j < d; j++ {
		// candidate thresholds: midpoints of the sorted distinct values
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return X[order[a]][j] < X[order[b]][j] })

		leftSum := 0.0
		for k := 0; k < n-1; k++ {
			leftSum += residual[order[k]]
			if X[order[k]][j] == X[order[k+1]][j] {
				continue
			}
			leftN := float64(k + 1)
			rightN := float64(n - k - 1)
			rightSum := total - leftSum

			// SSE reduction of splitting here
			gain := leftSum*leftSum/leftN + rightSum*rightSum/rightN - total*total/float64(n)
			if gain > bestGain+1e-12 {
				bestGain = gain
				best = stump{
					Feature:   j,
					Threshold: (X[order[k]][j] + X[order[k+1]][j]) / 2,
					Left:      leftSum / leftN,
					Right:     rightSum / rightN,
				}
				found = true
			}
		}
	}
	return best, found
}
