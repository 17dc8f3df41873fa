package dataset

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/features"
)

// SplitRatios partitions the dataset. Train + Validation + Test should sum
// to 1; Validate rejects anything else.
type SplitRatios struct {
	Train      float64 `yaml:"train"`
	Validation float64 `yaml:"validation"`
	Test       float64 `yaml:"test"`
}

func (s SplitRatios) Validate() error {
	for _, r := range []float64{s.Train, s.Validation, s.Test} {
		if r <= 0 || 1 <= r {
			return fmt.Errorf("%w: each split ratio must be in (0, 1), got %+v", domain.ErrInsufficientData, s)
		}
	}
	if sum := s.Train + s.Validation + s.Test; sum < 0.999 || 1.001 < sum {
		return fmt.Errorf("%w: split ratios must sum to 1, got %f", domain.ErrInsufficientData, sum)
	}
	return nil
}

// DefaultSplit is the 70/15/15 split used by the training pipeline.
func DefaultSplit() SplitRatios {
	return SplitRatios{Train: 0.70, Validation: 0.15, Test: 0.15}
}

// Builder turns raw records into transformed, labeled partitions.
//
// Splitting happens on raw records, before any feature computation, with a
// fixed Seed, so the same dataset and seed always put the same records into
// the same partitions. The feature transformer is fit on the training split
// only and applied read-only to the others.
type Builder struct {
	Schema features.Schema
	Label  string  // raw column holding the 0/1 label
	Seed   int64   // shuffle seed; fixed for reproducible membership
	Floor  float64 // minimum positive-class rate before warning
}

// Result is the outcome of one build: three partitions produced by the one
// Transformer, plus non-fatal data-quality warnings.
type Result struct {
	Train       domain.Partition
	Validation  domain.Partition
	Test        domain.Partition
	Transformer *features.Artifact
	Warnings    []error
}

// Build splits, fits, and transforms.
//
// Fails with ErrInsufficientData when any split would be empty, and with
// ErrSchemaMismatch on label or feature trouble. A positive-class rate in
// the training split below Floor is reported as an ErrLabelImbalance
// warning in Result.Warnings, not an error.
func (b *Builder) Build(records []domain.RawRecord, ratios SplitRatios) (*Result, error) {
	if err := ratios.Validate(); err != nil {
		return nil, err
	}

	n := len(records)
	nTrain := int(float64(n) * ratios.Train)
	nValidation := int(float64(n) * ratios.Validation)
	nTest := n - nTrain - nValidation
	if nTrain == 0 || nValidation == 0 || nTest == 0 {
		return nil, fmt.Errorf(
			"%w: %d records cannot fill a %v split (train=%d validation=%d test=%d)",
			domain.ErrInsufficientData, n, ratios, nTrain, nValidation, nTest,
		)
	}

	perm := rand.New(rand.NewSource(b.Seed)).Perm(n)
	rawTrain := pick(records, perm[:nTrain])
	rawValidation := pick(records, perm[nTrain:nTrain+nValidation])
	rawTest := pick(records, perm[nTrain+nValidation:])

	artifact, err := features.Fit(b.Schema, stripLabel(rawTrain, b.Label))
	if err != nil {
		return nil, err
	}

	result := &Result{Transformer: artifact}
	for _, part := range []struct {
		raw  []domain.RawRecord
		into *domain.Partition
	}{
		{rawTrain, &result.Train},
		{rawValidation, &result.Validation},
		{rawTest, &result.Test},
	} {
		x, err := features.ApplyAll(artifact, stripLabel(part.raw, b.Label))
		if err != nil {
			return nil, err
		}
		y, err := labels(part.raw, b.Label)
		if err != nil {
			return nil, err
		}
		*part.into = domain.Partition{X: x, Y: y}
	}

	if rate := result.Train.PositiveRate(); rate < b.Floor {
		result.Warnings = append(result.Warnings, fmt.Errorf(
			"%w: positive-class rate %.4f in training split is below floor %.4f",
			domain.ErrLabelImbalance, rate, b.Floor,
		))
	}

	return result, nil
}

func pick(records []domain.RawRecord, idx []int) []domain.RawRecord {
	out := make([]domain.RawRecord, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

// stripLabel hides the label column from the feature transformer, keeping
// the target out of the fit statistics.
func stripLabel(records []domain.RawRecord, label string) []domain.RawRecord {
	out := make([]domain.RawRecord, len(records))
	for i, r := range records {
		c := r.Clone()
		delete(c, label)
		out[i] = c
	}
	return out
}

func labels(records []domain.RawRecord, label string) ([]int, error) {
	out := make([]int, len(records))
	for i, r := range records {
		if r.Missing(label) {
			return nil, domain.SchemaMismatch(label, fmt.Sprintf("record %d has no label", i))
		}
		v := strings.TrimSpace(r[label])
		y, err := strconv.Atoi(v)
		if err != nil || (y != 0 && y != 1) {
			return nil, domain.SchemaMismatch(label, fmt.Sprintf("label %q is not 0 or 1", v))
		}
		out[i] = y
	}
	return out, nil
}
