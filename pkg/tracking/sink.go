package tracking

import (
	"context"
	"errors"
)

// ErrUnknownRun: the queried run has never been logged to.
var ErrUnknownRun = errors.New("unknown run")

// Sink is the experiment-tracking collaborator: an append-only,
// per-run-queryable store of parameters, metrics and artifact references.
//
// Implementations must support concurrent appends from parallel training
// workers. Each call is atomic per run: a reader never observes half of one
// LogParams or LogMetrics call. Calls for different runs need no mutual
// ordering.
type Sink interface {
	LogParams(ctx context.Context, runID string, params map[string]string) error
	LogMetrics(ctx context.Context, runID string, metrics map[string]float64) error
	LogArtifact(ctx context.Context, runID string, ref string) error

	// RunLog returns everything logged for one run.
	RunLog(ctx context.Context, runID string) (RunLog, error)
}

// RunLog is the queryable view of one run's appended fields.
type RunLog struct {
	RunID     string
	Params    map[string]string
	Metrics   map[string]float64
	Artifacts []string
}
