package domain

import (
	"sort"
	"time"
)

// RunStatus is the lifecycle state of an ExperimentRun.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// CandidateConfig names one model family with a hyperparameter grid.
//
// Each key maps to the values to try for it; the experiment runner expands
// the cartesian product into one concrete run per combination, in sorted-key
// order so expansion is deterministic.
type CandidateConfig struct {
	ModelType string              `yaml:"modelType"`
	Grid      map[string][]string `yaml:"grid"`
}

// ExperimentRun is one tracked training attempt.
//
// It is mutated only by the worker that owns it and becomes immutable once
// Status reaches a terminal state (completed or failed).
type ExperimentRun struct {
	RunID           string
	ModelType       string
	Hyperparameters map[string]string
	Metrics         map[string]float64
	ModelArtifact   string // artifact store reference; empty until completed
	Status          RunStatus
	Cause           string // failure cause; empty unless Status == RunFailed
	StartedAt       time.Time
	FinishedAt      time.Time
}

// TrainingTime is how long the run took, terminal states only.
func (r ExperimentRun) TrainingTime() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ParamKeys returns the hyperparameter names in sorted order.
func (r ExperimentRun) ParamKeys() []string {
	keys := make([]string, 0, len(r.Hyperparameters))
	for k := range r.Hyperparameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prediction is the outcome of scoring one record.
type Prediction struct {
	// Probability of default, in [0, 1].
	Probability float64

	// Decision derived from Probability by the configured threshold.
	Decision Decision

	// ModelVersion identifies the artifact bundle that produced this.
	ModelVersion string
}

// Decision is the thresholded binary outcome of a prediction.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)
