package inference_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/credfab/credfab/pkg/artifacts"
	"github.com/credfab/credfab/pkg/bundle"
	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/features"
	"github.com/credfab/credfab/pkg/inference"
	"github.com/credfab/credfab/pkg/model"
	"github.com/credfab/credfab/pkg/selection"
	"github.com/credfab/credfab/pkg/utils/try"
)

// publishBundle builds a minimal but fully consistent bundle: two numeric
// fields, one required, and a logistic regression that learned y = (a+b > 0).
func publishBundle(t *testing.T, runID string, threshold float64) *bundle.Bundle {
	t.Helper()
	ctx := context.Background()

	schema := features.Schema{
		SchemaVersion: "test-v1",
		Fields: []features.FieldDecl{
			{Name: "a", Kind: features.Numeric, Required: true},
			{Name: "b", Kind: features.Numeric},
		},
	}
	records := []domain.RawRecord{
		{"a": "-2", "b": "-1"},
		{"a": "-1", "b": "-2"},
		{"a": "1", "b": "2"},
		{"a": "2", "b": "1"},
	}
	transformer := try.To(features.Fit(schema, records)).OrFatal(t)

	train := domain.Partition{}
	for i, r := range records {
		fv := try.To(features.Apply(transformer, r)).OrFatal(t)
		train.X = append(train.X, fv)
		label := 0
		if i >= len(records)/2 {
			label = 1
		}
		train.Y = append(train.Y, label)
	}

	m := try.To(model.New(model.FamilyLogisticRegression, map[string]string{"epochs": "500"})).OrFatal(t)
	if err := m.Train(ctx, train); err != nil {
		t.Fatal(err)
	}

	store := artifacts.NewMemStore()
	ref := try.To(store.Put(ctx, try.To(model.Encode(m, transformer.Fingerprint())).OrFatal(t))).OrFatal(t)

	now := time.Now()
	sel := selection.Selection{Winner: domain.ExperimentRun{
		RunID: runID, Status: domain.RunCompleted,
		Metrics:       map[string]float64{"auc": 1},
		ModelArtifact: string(ref),
		StartedAt:     now, FinishedAt: now,
	}}
	manifest := try.To(bundle.Publish(ctx, store, transformer, sel, "auc", threshold)).OrFatal(t)
	return try.To(bundle.Load(ctx, store, *manifest)).OrFatal(t)
}

func TestEngine_PredictBeforeLoad(t *testing.T) {
	_, err := inference.New().Predict(domain.RawRecord{"a": "1"})
	if !errors.Is(err, domain.ErrEngineNotLoaded) {
		t.Errorf("want ErrEngineNotLoaded, got %v", err)
	}
}

func TestEngine_Predict(t *testing.T) {
	engine := inference.New()
	if err := engine.Load(publishBundle(t, "run-1", 0.5)); err != nil {
		t.Fatal(err)
	}

	type When struct {
		request domain.RawRecord
	}
	type Then struct {
		err      error
		decision domain.Decision
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			got, err := engine.Predict(when.request)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Fatalf("want %v, got %v", then.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got.Probability < 0 || 1 < got.Probability {
				t.Errorf("probability out of range: %f", got.Probability)
			}
			if got.Decision != then.decision {
				t.Errorf("decision: want %s, got %s", then.decision, got.Decision)
			}
			if got.ModelVersion != engine.Version() {
				t.Errorf("model version: %s vs %s", got.ModelVersion, engine.Version())
			}
		}
	}

	t.Run("a clearly safe applicant is approved", theory(
		When{request: domain.RawRecord{"a": "-5", "b": "-5"}},
		Then{decision: domain.Approve},
	))

	t.Run("a clearly risky applicant is rejected", theory(
		When{request: domain.RawRecord{"a": "5", "b": "5"}},
		Then{decision: domain.Reject},
	))

	t.Run("missing optional field is imputed, not an error", theory(
		When{request: domain.RawRecord{"a": "-5"}},
		Then{decision: domain.Approve},
	))

	t.Run("missing required field is a validation error", theory(
		When{request: domain.RawRecord{"b": "1"}},
		Then{err: domain.ErrValidation},
	))

	t.Run("text in a numeric field is a validation error", theory(
		When{request: domain.RawRecord{"a": "lots", "b": "1"}},
		Then{err: domain.ErrValidation},
	))
}

func TestEngine_RemainsServiceableAfterABadRequest(t *testing.T) {
	engine := inference.New()
	if err := engine.Load(publishBundle(t, "run-1", 0.5)); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Predict(domain.RawRecord{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}

	got := try.To(engine.Predict(domain.RawRecord{"a": "-5", "b": "-5"})).OrFatal(t)
	if got.Decision != domain.Approve {
		t.Errorf("engine state corrupted by failed request: %+v", got)
	}
}

func TestEngine_LoadRejectsBrokenBundles(t *testing.T) {
	engine := inference.New()

	t.Run("nil bundle", func(t *testing.T) {
		if err := engine.Load(nil); !errors.Is(err, domain.ErrIncompatibleBundle) {
			t.Errorf("want ErrIncompatibleBundle, got %v", err)
		}
	})

	t.Run("fingerprint mismatch", func(t *testing.T) {
		b := publishBundle(t, "run-1", 0.5)
		b.Manifest.Fingerprint = "doctored"
		if err := engine.Load(b); !errors.Is(err, domain.ErrIncompatibleBundle) {
			t.Errorf("want ErrIncompatibleBundle, got %v", err)
		}
	})

	t.Run("threshold out of range", func(t *testing.T) {
		b := publishBundle(t, "run-1", 0.5)
		b.Manifest.Threshold = 0
		if err := engine.Load(b); !errors.Is(err, domain.ErrIncompatibleBundle) {
			t.Errorf("want ErrIncompatibleBundle, got %v", err)
		}
	})

	t.Run("a rejected load does not clobber the serving bundle", func(t *testing.T) {
		engine := inference.New()
		good := publishBundle(t, "run-1", 0.5)
		if err := engine.Load(good); err != nil {
			t.Fatal(err)
		}

		bad := publishBundle(t, "run-1", 0.5)
		bad.Manifest.Fingerprint = "doctored"
		if err := engine.Load(bad); err == nil {
			t.Fatal("load should have failed")
		}

		if _, err := engine.Predict(domain.RawRecord{"a": "1", "b": "1"}); err != nil {
			t.Errorf("engine lost its bundle: %s", err)
		}
	})
}

func TestEngine_ConcurrentPredictsAndHotSwap(t *testing.T) {
	engine := inference.New()
	first := publishBundle(t, "run-1", 0.5)
	if err := engine.Load(first); err != nil {
		t.Fatal(err)
	}
	second := publishBundle(t, "run-2", 0.9)

	stop := make(chan struct{})
	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := engine.Predict(domain.RawRecord{"a": "1", "b": "1"})
				if err != nil {
					t.Errorf("predict during swap: %s", err)
					return
				}
				// every response must reflect exactly one bundle version
				if got.ModelVersion != first.Manifest.BundleVersion &&
					got.ModelVersion != second.Manifest.BundleVersion {
					t.Errorf("torn bundle observed: %q", got.ModelVersion)
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		if err := engine.Load(second); err != nil {
			t.Errorf("swap: %s", err)
		}
		if err := engine.Load(first); err != nil {
			t.Errorf("swap: %s", err)
		}
	}
	close(stop)
	wg.Wait()
}
