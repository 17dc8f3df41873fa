package selection

import (
	"fmt"
	"sort"

	"github.com/credfab/credfab/pkg/domain"
)

// Selection is the outcome of one selection cycle: the winner plus the full
// ranking behind it, for audit logs.
type Selection struct {
	Winner  domain.ExperimentRun
	Ranking []domain.ExperimentRun
}

// Selector picks exactly one winning run with a deterministic policy.
type Selector struct {
	// MetricKey ranks runs, descending. Runs without it are not eligible.
	MetricKey string
}

// Select filters to completed runs carrying MetricKey and ranks them:
// metric descending, ties broken by shorter training time, then by
// lexicographically smallest run ID. Re-running over the same inputs always
// returns the same winner.
//
// Fails with ErrNoEligibleRuns when nothing qualifies.
func (s Selector) Select(runs []domain.ExperimentRun) (Selection, error) {
	eligible := []domain.ExperimentRun{}
	for _, r := range runs {
		if r.Status != domain.RunCompleted {
			continue
		}
		if _, ok := r.Metrics[s.MetricKey]; !ok {
			continue
		}
		eligible = append(eligible, r)
	}
	if len(eligible) == 0 {
		return Selection{}, fmt.Errorf(
			"%w: %d runs submitted, none completed with metric %q",
			domain.ErrNoEligibleRuns, len(runs), s.MetricKey,
		)
	}

	sort.Slice(eligible, func(a, b int) bool {
		ra, rb := eligible[a], eligible[b]
		ma, mb := ra.Metrics[s.MetricKey], rb.Metrics[s.MetricKey]
		if ma != mb {
			return ma > mb
		}
		if ta, tb := ra.TrainingTime(), rb.TrainingTime(); ta != tb {
			return ta < tb
		}
		return ra.RunID < rb.RunID
	})

	return Selection{Winner: eligible[0], Ranking: eligible}, nil
}
