package model

import (
	"context"
	"fmt"
	"math"

	"github.com/credfab/credfab/pkg/domain"
)

// LogisticRegression is binary logistic regression trained by full-batch
// gradient descent with L2 regularization.
//
// Weights start at zero, so training is deterministic for a given dataset
// and hyperparameters.
type LogisticRegression struct {
	C            float64 `json:"c"` // inverse regularization strength
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learningRate"`

	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func newLogisticRegression(p params) (*LogisticRegression, error) {
	c, err := p.float("c", 1.0)
	if err != nil {
		return nil, err
	}
	epochs, err := p.int("epochs", 200)
	if err != nil {
		return nil, err
	}
	lr, err := p.float("learning_rate", 0.1)
	if err != nil {
		return nil, err
	}
	if c <= 0 {
		return nil, fmt.Errorf("hyperparameter c must be positive, got %f", c)
	}
	return &LogisticRegression{C: c, Epochs: epochs, LearningRate: lr}, nil
}

func (m *LogisticRegression) Family() string { return FamilyLogisticRegression }

func (m *LogisticRegression) Train(ctx context.Context, train domain.Partition) error {
	if train.Len() == 0 {
		return fmt.Errorf("empty training partition")
	}
	d := len(train.X[0].Values)
	n := float64(train.Len())
	lambda := 1 / (m.C * n)

	m.Weights = make([]float64, d)
	m.Bias = 0

	for epoch := 0; epoch < m.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		gw := make([]float64, d)
		gb := 0.0
		for i, fv := range train.X {
			err := sigmoid(m.logit(fv.Values)) - float64(train.Y[i])
			for j, x := range fv.Values {
				gw[j] += err * x
			}
			gb += err
		}

		for j := range m.Weights {
			m.Weights[j] -= m.LearningRate * (gw[j]/n + lambda*m.Weights[j])
		}
		m.Bias -= m.LearningRate * gb / n
	}
	return nil
}

func (m *LogisticRegression) Score(fv domain.FeatureVector) float64 {
	return sigmoid(m.logit(fv.Values))
}

func (m *LogisticRegression) logit(x []float64) float64 {
	s := m.Bias
	for j, w := range m.Weights {
		s += w * x[j]
	}
	return s
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
