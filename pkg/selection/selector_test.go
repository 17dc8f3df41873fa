package selection_test

import (
	"errors"
	"testing"
	"time"

	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/selection"
	"github.com/credfab/credfab/pkg/utils/try"
)

func run(id string, status domain.RunStatus, auc float64, took time.Duration) domain.ExperimentRun {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := domain.ExperimentRun{
		RunID:      id,
		ModelType:  "logistic_regression",
		Status:     status,
		StartedAt:  started,
		FinishedAt: started.Add(took),
	}
	if status == domain.RunCompleted {
		r.Metrics = map[string]float64{"auc": auc}
	}
	return r
}

func TestSelect(t *testing.T) {
	testee := selection.Selector{MetricKey: "auc"}

	type When struct {
		runs []domain.ExperimentRun
	}
	type Then struct {
		winner string
		err    error
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			got, err := testee.Select(when.runs)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Fatalf("want %v, got %v", then.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got.Winner.RunID != then.winner {
				t.Errorf("winner: want %s, got %s", then.winner, got.Winner.RunID)
			}
		}
	}

	t.Run("highest metric wins", theory(
		When{runs: []domain.ExperimentRun{
			run("run-a", domain.RunCompleted, 0.80, time.Minute),
			run("run-b", domain.RunCompleted, 0.92, time.Hour),
			run("run-c", domain.RunCompleted, 0.85, time.Second),
		}},
		Then{winner: "run-b"},
	))

	t.Run("equal metric: shorter training time wins", theory(
		When{runs: []domain.ExperimentRun{
			run("run-a", domain.RunCompleted, 0.9, time.Hour),
			run("run-b", domain.RunCompleted, 0.9, time.Minute),
		}},
		Then{winner: "run-b"},
	))

	t.Run("equal metric and time: smallest run id wins", theory(
		When{runs: []domain.ExperimentRun{
			run("run-z", domain.RunCompleted, 0.9, time.Minute),
			run("run-a", domain.RunCompleted, 0.9, time.Minute),
			run("run-m", domain.RunCompleted, 0.9, time.Minute),
		}},
		Then{winner: "run-a"},
	))

	t.Run("failed runs are not eligible", theory(
		When{runs: []domain.ExperimentRun{
			run("run-a", domain.RunFailed, 0, time.Minute),
			run("run-b", domain.RunCompleted, 0.5, time.Minute),
		}},
		Then{winner: "run-b"},
	))

	t.Run("no completed runs at all", theory(
		When{runs: []domain.ExperimentRun{
			run("run-a", domain.RunFailed, 0, time.Minute),
			run("run-b", domain.RunFailed, 0, time.Minute),
		}},
		Then{err: domain.ErrNoEligibleRuns},
	))

	t.Run("empty input", theory(
		When{runs: nil},
		Then{err: domain.ErrNoEligibleRuns},
	))

	t.Run("completed run without the ranking metric is skipped", theory(
		When{runs: []domain.ExperimentRun{
			func() domain.ExperimentRun {
				r := run("run-a", domain.RunCompleted, 0, time.Minute)
				r.Metrics = map[string]float64{"accuracy": 0.99}
				return r
			}(),
			run("run-b", domain.RunCompleted, 0.5, time.Minute),
		}},
		Then{winner: "run-b"},
	))
}

func TestSelect_IsDeterministicAcrossInvocationsAndInputOrder(t *testing.T) {
	testee := selection.Selector{MetricKey: "auc"}
	runs := []domain.ExperimentRun{
		run("run-c", domain.RunCompleted, 0.9, time.Minute),
		run("run-a", domain.RunCompleted, 0.9, time.Minute),
		run("run-b", domain.RunCompleted, 0.7, time.Second),
	}
	first := try.To(testee.Select(runs)).OrFatal(t)

	for i := 0; i < 10; i++ {
		again := try.To(testee.Select(runs)).OrFatal(t)
		if again.Winner.RunID != first.Winner.RunID {
			t.Fatal("selection is not deterministic")
		}
	}

	reversed := []domain.ExperimentRun{runs[2], runs[1], runs[0]}
	again := try.To(testee.Select(reversed)).OrFatal(t)
	if again.Winner.RunID != first.Winner.RunID {
		t.Error("selection depends on input order")
	}
}

func TestSelect_RankingIsCompleteAndOrdered(t *testing.T) {
	testee := selection.Selector{MetricKey: "auc"}
	got := try.To(testee.Select([]domain.ExperimentRun{
		run("run-a", domain.RunCompleted, 0.7, time.Minute),
		run("run-b", domain.RunCompleted, 0.9, time.Minute),
		run("run-c", domain.RunFailed, 0, time.Minute),
	})).OrFatal(t)

	if len(got.Ranking) != 2 {
		t.Fatalf("want 2 ranked runs, got %d", len(got.Ranking))
	}
	if got.Ranking[0].RunID != "run-b" || got.Ranking[1].RunID != "run-a" {
		t.Errorf("ranking out of order: %s, %s", got.Ranking[0].RunID, got.Ranking[1].RunID)
	}
}
