package inference

import (
	"fmt"
	"sync/atomic"

	"github.com/credfab/credfab/pkg/bundle"
	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/features"
)

// Engine serves predictions from one loaded artifact bundle.
//
// The loaded bundle sits behind an atomic pointer: Predict snapshots it
// once and works on that snapshot, so concurrent predictions and hot swaps
// never observe a half-replaced bundle. The bundle itself is immutable.
type Engine struct {
	current atomic.Pointer[bundle.Bundle]
}

func New() *Engine {
	return &Engine{}
}

// Load validates the bundle and swaps it in atomically. In-flight Predict
// calls keep using the bundle they snapshotted; new calls see this one.
//
// Fails with ErrIncompatibleBundle when the bundle is partial or its
// transformer and model fingerprints disagree.
func (e *Engine) Load(b *bundle.Bundle) error {
	if b == nil || b.Transformer == nil || b.Model == nil {
		return fmt.Errorf("%w: bundle is partial", domain.ErrIncompatibleBundle)
	}
	if fp := b.Transformer.Fingerprint(); fp != b.Manifest.Fingerprint {
		return fmt.Errorf(
			"%w: transformer fingerprint %.12s does not match manifest %.12s",
			domain.ErrIncompatibleBundle, fp, b.Manifest.Fingerprint,
		)
	}
	if t := b.Manifest.Threshold; t <= 0 || 1 <= t {
		return fmt.Errorf("%w: decision threshold %f is not in (0, 1)", domain.ErrIncompatibleBundle, t)
	}

	e.current.Store(b)
	return nil
}

// Version reports the loaded bundle version; empty before Load.
func (e *Engine) Version() string {
	b := e.current.Load()
	if b == nil {
		return ""
	}
	return b.Manifest.BundleVersion
}

// Predict validates the request, transforms it with the frozen artifact,
// scores it, and thresholds the probability into a decision.
//
// Fails with ErrEngineNotLoaded before the first Load and with
// ErrValidation on malformed requests. Out-of-vocabulary categorical values
// are not malformed; they are imputed by the transformer.
func (e *Engine) Predict(request domain.RawRecord) (domain.Prediction, error) {
	b := e.current.Load()
	if b == nil {
		return domain.Prediction{}, domain.ErrEngineNotLoaded
	}

	if err := validate(b.Transformer, request); err != nil {
		return domain.Prediction{}, err
	}

	fv, err := features.Apply(b.Transformer, request)
	if err != nil {
		// validate() should have caught everything; keep the taxonomy
		// honest if a gap remains
		return domain.Prediction{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	p := b.Model.Score(fv)
	decision := domain.Approve
	if p >= b.Manifest.Threshold {
		decision = domain.Reject
	}

	return domain.Prediction{
		Probability:  p,
		Decision:     decision,
		ModelVersion: b.Manifest.BundleVersion,
	}, nil
}

// validate checks the request against the frozen contract: every field
// without an imputation rule must be present, and numeric fields must hold
// numbers. The engine state is untouched on failure.
func validate(a *features.Artifact, request domain.RawRecord) error {
	for _, name := range a.RequiredFields() {
		if request.Missing(name) {
			return domain.Validation(fmt.Sprintf("required field %q is missing and has no imputation rule", name))
		}
	}
	for _, f := range a.Fields {
		if f.Kind != features.Numeric || request.Missing(f.Name) {
			continue
		}
		if _, err := features.ParseNumeric(f.Name, request[f.Name]); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
	}
	return nil
}
