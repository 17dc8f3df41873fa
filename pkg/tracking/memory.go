package tracking

import (
	"context"
	"fmt"
	"sync"
)

// MemorySink is an in-process Sink for tests and single-machine pipelines.
//
// One mutex guards the whole sink; each Log* call commits as a unit, which
// is exactly the per-run atomicity the Sink contract asks for.
type MemorySink struct {
	mu   sync.RWMutex
	runs map[string]*RunLog
}

var _ Sink = (*MemorySink)(nil)

func NewMemorySink() *MemorySink {
	return &MemorySink{runs: map[string]*RunLog{}}
}

func (s *MemorySink) log(runID string, mutate func(*RunLog)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		r = &RunLog{RunID: runID, Params: map[string]string{}, Metrics: map[string]float64{}}
		s.runs[runID] = r
	}
	mutate(r)
}

func (s *MemorySink) LogParams(_ context.Context, runID string, params map[string]string) error {
	s.log(runID, func(r *RunLog) {
		for k, v := range params {
			r.Params[k] = v
		}
	})
	return nil
}

func (s *MemorySink) LogMetrics(_ context.Context, runID string, metrics map[string]float64) error {
	s.log(runID, func(r *RunLog) {
		for k, v := range metrics {
			r.Metrics[k] = v
		}
	})
	return nil
}

func (s *MemorySink) LogArtifact(_ context.Context, runID string, ref string) error {
	s.log(runID, func(r *RunLog) {
		r.Artifacts = append(r.Artifacts, ref)
	})
	return nil
}

func (s *MemorySink) RunLog(_ context.Context, runID string) (RunLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok {
		return RunLog{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	out := RunLog{
		RunID:     r.RunID,
		Params:    make(map[string]string, len(r.Params)),
		Metrics:   make(map[string]float64, len(r.Metrics)),
		Artifacts: append([]string(nil), r.Artifacts...),
	}
	for k, v := range r.Params {
		out.Params[k] = v
	}
	for k, v := range r.Metrics {
		out.Metrics[k] = v
	}
	return out, nil
}
