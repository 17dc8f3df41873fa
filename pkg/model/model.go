package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/credfab/credfab/pkg/domain"
)

// Model is the single capability every family implements, keeping the
// experiment runner family-agnostic.
//
// Train fits in place; Score returns the probability of the positive class
// (default). Score must be safe for concurrent use once Train returned.
type Model interface {
	Family() string
	Train(ctx context.Context, train domain.Partition) error
	Score(fv domain.FeatureVector) float64
}

// Families supported by New, matching the candidate families of the
// training pipeline.
const (
	FamilyLogisticRegression = "logistic_regression"
	FamilyRandomForest       = "random_forest"
	FamilyGradientBoosting   = "gradient_boosting"
)

// New builds an untrained model from a family name and hyperparameters.
//
// Unknown families and unknown or malformed hyperparameters are errors, so
// one bad candidate config surfaces as a failed run instead of silently
// training with defaults.
func New(family string, hyperparameters map[string]string) (Model, error) {
	// consumed keys are deleted while parsing; work on a copy
	p := make(params, len(hyperparameters))
	for k, v := range hyperparameters {
		p[k] = v
	}
	var m Model
	var err error
	switch family {
	case FamilyLogisticRegression:
		m, err = newLogisticRegression(p)
	case FamilyRandomForest:
		m, err = newRandomForest(p)
	case FamilyGradientBoosting:
		m, err = newGradientBoosting(p)
	default:
		return nil, fmt.Errorf("unknown model family %q", family)
	}
	if err != nil {
		return nil, err
	}
	if leftover := p.leftover(); len(leftover) != 0 {
		return nil, fmt.Errorf("unknown hyperparameters for %s: %v", family, leftover)
	}
	return m, nil
}

// envelope wraps a serialized model with the metadata needed to refuse
// deserializing it against the wrong feature schema.
type envelope struct {
	Family      string          `json:"family"`
	Fingerprint string          `json:"fingerprint"`
	Payload     json.RawMessage `json:"payload"`
}

// Encode serializes a trained model together with the feature fingerprint
// it was trained against.
func Encode(m Model, fingerprint string) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Family:      m.Family(),
		Fingerprint: fingerprint,
		Payload:     payload,
	})
}

// Decode is the inverse of Encode. It returns the model and the feature
// fingerprint the artifact was trained against; blobs without a fingerprint
// are rejected.
func Decode(b []byte) (Model, string, error) {
	var e envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, "", err
	}
	if e.Fingerprint == "" {
		return nil, "", fmt.Errorf("%w: model artifact carries no feature fingerprint", domain.ErrIncompatibleBundle)
	}

	var m Model
	switch e.Family {
	case FamilyLogisticRegression:
		m = &LogisticRegression{}
	case FamilyRandomForest:
		m = &RandomForest{}
	case FamilyGradientBoosting:
		m = &GradientBoosting{}
	default:
		return nil, "", fmt.Errorf("%w: unknown model family %q", domain.ErrIncompatibleBundle, e.Family)
	}
	if err := json.Unmarshal(e.Payload, m); err != nil {
		return nil, "", err
	}
	return m, e.Fingerprint, nil
}

// params tracks which hyperparameter keys were consumed, so typos in a
// candidate config fail loudly.
type params map[string]string

func (p params) leftover() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p params) float(key string, fallback float64) (float64, error) {
	raw, ok := p[key]
	if !ok {
		return fallback, nil
	}
	delete(p, key)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("hyperparameter %s=%q is not numeric", key, raw)
	}
	return v, nil
}

func (p params) int(key string, fallback int) (int, error) {
	raw, ok := p[key]
	if !ok {
		return fallback, nil
	}
	delete(p, key)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("hyperparameter %s=%q is not an integer", key, raw)
	}
	return v, nil
}
