package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/credfab/credfab/pkg/artifacts"
	"github.com/credfab/credfab/pkg/bundle"
	cct "github.com/credfab/credfab/pkg/configs/train"
	"github.com/credfab/credfab/pkg/dataset"
	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/features"
	"github.com/credfab/credfab/pkg/pipeline"
	"github.com/credfab/credfab/pkg/tracking"
	trkpg "github.com/credfab/credfab/pkg/tracking/postgres"
)

func main() {

	configPath := flag.String("config-path", "", "training config path")
	flag.Parse()

	logger := log.New(os.Stderr, "[credtrain] ", log.LstdFlags)

	conf, err := cct.LoadTrainConfig(*configPath)
	if err != nil {
		logger.Fatalf("can not read configration: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := artifacts.NewFileStore(conf.Output().StoreRoot())
	if err != nil {
		logger.Fatalf("can not open artifact store: %s", err)
	}

	var sink tracking.Sink
	if dburi := conf.Output().Database(); dburi != "" {
		pool, err := pgxpool.Connect(ctx, dburi)
		if err != nil {
			logger.Fatalf("can not connect tracking database: %s", err)
		}
		defer pool.Close()

		pgsink := trkpg.New(pool)
		if err := pgsink.Ensure(ctx); err != nil {
			logger.Fatalf("can not prepare tracking tables: %s", err)
		}
		sink = pgsink
	} else {
		sink = tracking.NewMemorySink()
	}

	records, err := dataset.ReadCSVFile(conf.Data().CSV())
	if err != nil {
		logger.Fatalf("can not read dataset %s: %s", conf.Data().CSV(), err)
	}
	logger.Printf("dataset: %d records from %s", len(records), conf.Data().CSV())

	candidates := make([]domain.CandidateConfig, 0, len(conf.Candidates()))
	for _, c := range conf.Candidates() {
		candidates = append(candidates, domain.CandidateConfig{
			ModelType: c.Model(),
			Grid:      c.Grid(),
		})
	}

	p := &pipeline.Pipeline{Store: store, Sink: sink, Logger: logger}
	outcome, err := p.Run(ctx, records, pipeline.Params{
		Builder: dataset.Builder{
			Schema: features.DefaultLoanSchema(),
			Label:  conf.Data().Label(),
			Seed:   conf.Data().Seed(),
			Floor:  conf.Data().Floor(),
		},
		Ratios: dataset.SplitRatios{
			Train:      conf.Data().Split().Train(),
			Validation: conf.Data().Split().Validation(),
			Test:       conf.Data().Split().Test(),
		},
		Candidates: candidates,
		MetricKey:  conf.Selection().Metric(),
		Threshold:  conf.Selection().Threshold(),
		Workers:    conf.Workers(),
	})
	if err != nil {
		logger.Fatalf("training cycle failed: %s", err)
	}

	report(logger, outcome, conf.Selection().Metric())

	if err := bundle.WriteManifest(outcome.Manifest, conf.Output().Manifest()); err != nil {
		logger.Fatalf("can not publish bundle manifest: %s", err)
	}
	logger.Printf("published bundle %s to %s", outcome.Manifest.BundleVersion, conf.Output().Manifest())
}

func report(logger *log.Logger, outcome *pipeline.Outcome, metricKey string) {
	logger.Printf("ranking by %s:", metricKey)
	for i, run := range outcome.Selection.Ranking {
		logger.Printf(
			"  %2d. run %s %s %v %s=%.4f (trained in %v)",
			i+1, run.RunID, run.ModelType, run.Hyperparameters,
			metricKey, run.Metrics[metricKey], run.TrainingTime(),
		)
	}
	for _, run := range outcome.Runs {
		if run.Status == domain.RunFailed {
			logger.Printf("  failed: run %s %s: %s", run.RunID, run.ModelType, run.Cause)
		}
	}
	logger.Printf(
		"winner: run %s (%s), held-out test metrics: %v",
		outcome.Selection.Winner.RunID, outcome.Selection.Winner.ModelType, outcome.TestMetrics,
	)
}
