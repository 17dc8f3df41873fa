package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/credfab/credfab/pkg/domain"
)

// RandomForest bags gini-split decision trees over bootstrap samples, with
// sqrt(d) features considered per split.
//
// All randomness flows from Seed, so the forest is reproducible.
type RandomForest struct {
	NEstimators int   `json:"nEstimators"`
	MaxDepth    int   `json:"maxDepth"`
	Seed        int64 `json:"seed"`

	Trees []*treeNode `json:"trees"`
}

func newRandomForest(p params) (*RandomForest, error) {
	n, err := p.int("n_estimators", 100)
	if err != nil {
		return nil, err
	}
	depth, err := p.int("max_depth", 5)
	if err != nil {
		return nil, err
	}
	seed, err := p.int("random_state", 42)
	if err != nil {
		return nil, err
	}
	if n <= 0 || depth <= 0 {
		return nil, fmt.Errorf("n_estimators and max_depth must be positive, got %d and %d", n, depth)
	}
	return &RandomForest{NEstimators: n, MaxDepth: depth, Seed: int64(seed)}, nil
}

func (m *RandomForest) Family() string { return FamilyRandomForest }

func (m *RandomForest) Train(ctx context.Context, train domain.Partition) error {
	if train.Len() == 0 {
		return fmt.Errorf("empty training partition")
	}
	X, y := asMatrix(train)
	n := len(X)
	d := len(X[0])
	sub := int(math.Ceil(math.Sqrt(float64(d))))

	rng := rand.New(rand.NewSource(m.Seed))
	m.Trees = make([]*treeNode, 0, m.NEstimators)

	for t := 0; t < m.NEstimators; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		rows := make([]int, n)
		for i := range rows {
			rows[i] = rng.Intn(n)
		}

		m.Trees = append(m.Trees, growTree(X, y, rows, 0, treeParams{
			maxDepth:   m.MaxDepth,
			minLeaf:    1,
			featureSub: sub,
			rng:        rng,
		}))
	}
	return nil
}

func (m *RandomForest) Score(fv domain.FeatureVector) float64 {
	if len(m.Trees) == 0 {
		return 0
	}
	s := 0.0
	for _, t := range m.Trees {
		s += t.predict(fv.Values)
	}
	return s / float64(len(m.Trees))
}

func asMatrix(p domain.Partition) ([][]float64, []int) {
	X := make([][]float64, p.Len())
	for i, fv := range p.X {
		X[i] = fv.Values
	}
	return X, p.Y
}
