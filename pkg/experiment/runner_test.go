package experiment_test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/credfab/credfab/pkg/artifacts"
	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/experiment"
	"github.com/credfab/credfab/pkg/model"
	"github.com/credfab/credfab/pkg/tracking"
	"github.com/credfab/credfab/pkg/utils/try"
)

func partitions(t *testing.T) (train, validation domain.Partition) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	names := []string{"a", "b"}
	mk := func(n int) domain.Partition {
		p := domain.Partition{}
		for i := 0; i < n; i++ {
			x0 := rng.Float64()*4 - 2
			x1 := rng.Float64()*4 - 2
			y := 0
			if x0+x1 > 0 {
				y = 1
			}
			p.X = append(p.X, domain.FeatureVector{Names: names, Values: []float64{x0, x1}})
			p.Y = append(p.Y, y)
		}
		return p
	}
	return mk(200), mk(80)
}

func sequentialRunIDs() func() string {
	// uuid.NewString in production; counters keep test assertions readable
	n := 0
	mu := sync.Mutex{}
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("run-%04d", n)
	}
}

func newRunner(sink tracking.Sink, store artifacts.Store) *experiment.Runner {
	return &experiment.Runner{
		Sink:        sink,
		Store:       store,
		Workers:     4,
		Threshold:   0.5,
		Fingerprint: "fp-test",
		NewRunID:    sequentialRunIDs(),
	}
}

func TestRunner_TrainsEveryCandidate(t *testing.T) {
	train, validation := partitions(t)
	sink := tracking.NewMemorySink()
	store := artifacts.NewMemStore()

	configs := []domain.CandidateConfig{
		{
			ModelType: model.FamilyLogisticRegression,
			Grid:      map[string][]string{"c": {"0.1", "1.0", "10"}},
		},
		{
			ModelType: model.FamilyRandomForest,
			Grid: map[string][]string{
				"n_estimators": {"10", "20"},
				"max_depth":    {"3", "5"},
			},
		},
	}

	runs := try.To(newRunner(sink, store).Run(
		context.Background(), configs, train, validation,
	)).OrFatal(t)

	// 3 logreg + 2x2 forest combinations
	if len(runs) != 7 {
		t.Fatalf("want 7 runs, got %d", len(runs))
	}

	for _, run := range runs {
		if run.Status != domain.RunCompleted {
			t.Errorf("run %s: status %s (%s)", run.RunID, run.Status, run.Cause)
			continue
		}
		if _, ok := run.Metrics[model.MetricAUC]; !ok {
			t.Errorf("run %s: no ranking metric", run.RunID)
		}
		if _, ok := run.Metrics[model.MetricLogLoss]; !ok {
			t.Errorf("run %s: no calibration metric", run.RunID)
		}
		if !run.FinishedAt.After(run.StartedAt) && !run.FinishedAt.Equal(run.StartedAt) {
			t.Errorf("run %s: timestamps out of order", run.RunID)
		}

		// the artifact reference must resolve and decode against the
		// advertised fingerprint
		blob := try.To(store.Get(context.Background(), artifacts.Ref(run.ModelArtifact))).OrFatal(t)
		_, fp := tryDecode(t, blob)
		if fp != "fp-test" {
			t.Errorf("run %s: artifact fingerprint %q", run.RunID, fp)
		}

		// everything is mirrored in the tracking sink
		logged := try.To(sink.RunLog(context.Background(), run.RunID)).OrFatal(t)
		if len(logged.Params) != len(run.Hyperparameters) {
			t.Errorf("run %s: sink params %v", run.RunID, logged.Params)
		}
		if logged.Metrics[model.MetricAUC] != run.Metrics[model.MetricAUC] {
			t.Errorf("run %s: sink and run metrics disagree", run.RunID)
		}
	}
}

func tryDecode(t *testing.T, blob []byte) (model.Model, string) {
	t.Helper()
	m, fp, err := model.Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	return m, fp
}

func TestRunner_OneBadConfigDoesNotAbortSiblings(t *testing.T) {
	train, validation := partitions(t)

	configs := []domain.CandidateConfig{
		{ModelType: model.FamilyLogisticRegression, Grid: map[string][]string{"c": {"1.0"}}},
		{ModelType: "quantum_svm"}, // unknown family
		{
			ModelType: model.FamilyLogisticRegression,
			// malformed value: parses as a grid but not as a float
			Grid: map[string][]string{"c": {"lots"}},
		},
	}

	runs := try.To(newRunner(tracking.NewMemorySink(), artifacts.NewMemStore()).Run(
		context.Background(), configs, train, validation,
	)).OrFatal(t)

	completed, failed := 0, 0
	for _, run := range runs {
		switch run.Status {
		case domain.RunCompleted:
			completed++
		case domain.RunFailed:
			failed++
			if !strings.Contains(run.Cause, "training failure") {
				t.Errorf("failure cause not categorized: %q", run.Cause)
			}
			if run.ModelArtifact != "" {
				t.Errorf("failed run %s still references an artifact", run.RunID)
			}
		}
	}
	if completed != 1 || failed != 2 {
		t.Errorf("want 1 completed + 2 failed, got %d + %d", completed, failed)
	}
}

func TestRunner_SequentialAndParallelAgreeOnMetrics(t *testing.T) {
	train, validation := partitions(t)
	configs := []domain.CandidateConfig{
		{
			ModelType: model.FamilyRandomForest,
			Grid:      map[string][]string{"n_estimators": {"10", "20"}, "random_state": {"1"}},
		},
	}

	metricsBy := func(workers int) map[string]float64 {
		runner := newRunner(tracking.NewMemorySink(), artifacts.NewMemStore())
		runner.Workers = workers
		runs := try.To(runner.Run(context.Background(), configs, train, validation)).OrFatal(t)
		out := map[string]float64{}
		for _, r := range runs {
			out[r.Hyperparameters["n_estimators"]] = r.Metrics[model.MetricAUC]
		}
		return out
	}

	seq := metricsBy(1)
	par := metricsBy(4)
	for k, v := range seq {
		if par[k] != v {
			t.Errorf("parallelism changed metrics for n_estimators=%s: %f vs %f", k, v, par[k])
		}
	}
}
