// Package pipeline sequences one full training cycle: dataset build,
// experiment runs, model selection, and bundle publication.
//
// Each stage consumes the previous stage's typed output, so a cycle cannot
// be wired out of order, and the transformer fit during the dataset stage is
// the one stamped into every trained model and published with the winner.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/credfab/credfab/pkg/artifacts"
	"github.com/credfab/credfab/pkg/bundle"
	"github.com/credfab/credfab/pkg/dataset"
	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/experiment"
	"github.com/credfab/credfab/pkg/model"
	"github.com/credfab/credfab/pkg/selection"
	"github.com/credfab/credfab/pkg/tracking"
)

// Params configures one training cycle.
type Params struct {
	Builder    dataset.Builder
	Ratios     dataset.SplitRatios
	Candidates []domain.CandidateConfig

	// MetricKey ranks completed runs; Threshold is the decision threshold
	// frozen into the published bundle and used for thresholded validation
	// metrics during training.
	MetricKey string
	Threshold float64

	// Workers bounds training parallelism.
	Workers int
}

// Outcome is everything one cycle produced, for reporting and auditing.
type Outcome struct {
	Runs      []domain.ExperimentRun
	Selection selection.Selection
	Manifest  bundle.Manifest

	// TestMetrics are the winner's metrics on the held-out test split,
	// computed once after selection. They play no part in ranking.
	TestMetrics map[string]float64

	Warnings []error
}

// Pipeline runs training cycles against a fixed store and sink.
type Pipeline struct {
	Store  artifacts.Store
	Sink   tracking.Sink
	Logger *log.Logger
}

// Run executes one cycle over records and returns its outcome.
//
// Dataset trouble surfaces as ErrInsufficientData or ErrSchemaMismatch; a
// grid where no candidate completes surfaces as ErrNoEligibleRuns. Runs that
// failed individually are reported in Outcome.Runs, not as an error.
func (p *Pipeline) Run(ctx context.Context, records []domain.RawRecord, params Params) (*Outcome, error) {
	built, err := params.Builder.Build(records, params.Ratios)
	if err != nil {
		return nil, err
	}
	for _, w := range built.Warnings {
		if p.Logger != nil {
			p.Logger.Printf("dataset warning: %s", w)
		}
	}

	runner := &experiment.Runner{
		Sink:        p.Sink,
		Store:       p.Store,
		Workers:     params.Workers,
		Threshold:   params.Threshold,
		Fingerprint: built.Transformer.Fingerprint(),
		Logger:      p.Logger,
	}
	runs, err := runner.Run(ctx, params.Candidates, built.Train, built.Validation)
	if err != nil {
		return nil, err
	}

	sel, err := selection.Selector{MetricKey: params.MetricKey}.Select(runs)
	if err != nil {
		return nil, err
	}
	if p.Logger != nil {
		p.Logger.Printf(
			"selected run %s (%s) with %s=%.4f out of %d eligible",
			sel.Winner.RunID, sel.Winner.ModelType,
			params.MetricKey, sel.Winner.Metrics[params.MetricKey], len(sel.Ranking),
		)
	}

	manifest, err := bundle.Publish(ctx, p.Store, built.Transformer, sel, params.MetricKey, params.Threshold)
	if err != nil {
		return nil, err
	}

	testMetrics, err := p.evaluateOnTest(ctx, sel.Winner, built.Test, params.Threshold)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Runs:        runs,
		Selection:   sel,
		Manifest:    *manifest,
		TestMetrics: testMetrics,
		Warnings:    built.Warnings,
	}, nil
}

// evaluateOnTest reads the winner back from the store and scores it against
// the test split. Reading back, rather than reusing the in-memory model,
// exercises the same decode path serving will take.
func (p *Pipeline) evaluateOnTest(
	ctx context.Context,
	winner domain.ExperimentRun,
	test domain.Partition,
	threshold float64,
) (map[string]float64, error) {
	blob, err := p.Store.Get(ctx, artifacts.Ref(winner.ModelArtifact))
	if err != nil {
		return nil, fmt.Errorf("winner %s vanished from store: %w", winner.RunID, err)
	}
	m, _, err := model.Decode(blob)
	if err != nil {
		return nil, err
	}
	return model.Evaluate(m, test, threshold), nil
}
