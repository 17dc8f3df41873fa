package experiment

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/credfab/credfab/pkg/artifacts"
	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/model"
	"github.com/credfab/credfab/pkg/tracking"
)

// Runner trains every expanded candidate against the same partitions, in
// parallel, and records one ExperimentRun per candidate.
//
// Workers share nothing mutable but the tracking sink; each owns its model
// instance. One candidate failing marks only its own run as failed.
type Runner struct {
	Sink  tracking.Sink
	Store artifacts.Store

	// Workers bounds training parallelism. Zero or negative means 1.
	Workers int

	// Threshold is the decision threshold used for thresholded validation
	// metrics (accuracy, precision, recall, f1).
	Threshold float64

	// Fingerprint of the feature transformer the partitions were produced
	// with; stamped into every model artifact.
	Fingerprint string

	// Logger receives per-run progress. Nil disables it.
	Logger *log.Logger

	// NewRunID overrides run-identifier generation, for tests.
	// Defaults to uuid.NewString.
	NewRunID func() string
}

// Run trains one model per expanded candidate and returns all runs,
// completed and failed, sorted by run ID.
//
// Training failures are absorbed per run; the only returned errors are
// infrastructure ones (tracking sink or artifact store refusing writes) and
// context cancellation observed before a worker starts.
func (r *Runner) Run(
	ctx context.Context,
	configs []domain.CandidateConfig,
	train domain.Partition,
	validation domain.Partition,
) ([]domain.ExperimentRun, error) {
	candidates := expand(configs)
	runs := make([]domain.ExperimentRun, len(candidates))

	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan int)
	wg := sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				runs[i] = r.one(ctx, candidates[i], train, validation)
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.Slice(runs, func(a, b int) bool { return runs[a].RunID < runs[b].RunID })

	for _, run := range runs {
		if run.Status == domain.RunFailed && r.Logger != nil {
			r.Logger.Printf("run %s (%s) failed: %s", run.RunID, run.ModelType, run.Cause)
		}
	}
	return runs, nil
}

// one trains a single candidate. It never returns an error: every failure
// lands on the run record instead.
func (r *Runner) one(
	ctx context.Context,
	c candidate,
	train domain.Partition,
	validation domain.Partition,
) (run domain.ExperimentRun) {
	newID := r.NewRunID
	if newID == nil {
		newID = uuid.NewString
	}

	run = domain.ExperimentRun{
		RunID:           newID(),
		ModelType:       c.modelType,
		Hyperparameters: c.hyperparameters,
		Status:          domain.RunRunning,
		StartedAt:       time.Now(),
	}

	fail := func(cause error) domain.ExperimentRun {
		run.Status = domain.RunFailed
		run.Cause = fmt.Errorf("%w: %w", domain.ErrTrainingFailure, cause).Error()
		run.FinishedAt = time.Now()
		return run
	}

	defer func() {
		// a panicking model implementation takes down its own run only
		if cause := recover(); cause != nil {
			run = fail(fmt.Errorf("panic: %v", cause))
		}
	}()

	if r.Logger != nil {
		r.Logger.Printf("run %s: training %s %v", run.RunID, c.modelType, c.hyperparameters)
	}
	if err := r.Sink.LogParams(ctx, run.RunID, c.hyperparameters); err != nil {
		return fail(err)
	}

	m, err := model.New(c.modelType, c.hyperparameters)
	if err != nil {
		return fail(err)
	}
	if err := m.Train(ctx, train); err != nil {
		return fail(err)
	}

	// metrics come from validation, never from train
	metrics := model.Evaluate(m, validation, r.Threshold)

	blob, err := model.Encode(m, r.Fingerprint)
	if err != nil {
		return fail(err)
	}
	ref, err := r.Store.Put(ctx, blob)
	if err != nil {
		return fail(err)
	}
	if err := r.Sink.LogArtifact(ctx, run.RunID, string(ref)); err != nil {
		return fail(err)
	}
	if err := r.Sink.LogMetrics(ctx, run.RunID, metrics); err != nil {
		return fail(err)
	}

	run.Metrics = metrics
	run.ModelArtifact = string(ref)
	run.Status = domain.RunCompleted
	run.FinishedAt = time.Now()

	if r.Logger != nil {
		r.Logger.Printf(
			"run %s: completed %s auc=%.4f log_loss=%.4f",
			run.RunID, c.modelType, metrics[model.MetricAUC], metrics[model.MetricLogLoss],
		)
	}
	return run
}
