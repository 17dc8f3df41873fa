package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy of the pipeline. Callers dispatch with errors.Is; every
// layer wraps with %w so the category survives wrapping.
var (
	// ErrSchemaMismatch: input shape or type violates the frozen feature
	// contract. Client-caused; not retryable without fixing the input.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrInsufficientData: a requested split would be empty.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrLabelImbalance: positive-class rate below the configured floor.
	// Warning-level; surfaced but never fatal to the build.
	ErrLabelImbalance = errors.New("label imbalance")

	// ErrTrainingFailure: one candidate's training failed. Absorbed per
	// run; recorded on the ExperimentRun, never propagated to siblings.
	ErrTrainingFailure = errors.New("training failure")

	// ErrNoEligibleRuns: selection found zero completed runs. Fatal to the
	// selection cycle; no bundle is published.
	ErrNoEligibleRuns = errors.New("no eligible runs")

	// ErrIncompatibleBundle: bundle is partial, or the transformer's
	// feature fingerprint does not match the model's. Fatal at load; the
	// engine refuses to serve rather than silently mis-score.
	ErrIncompatibleBundle = errors.New("incompatible bundle")

	// ErrValidation: malformed prediction request. Client-caused.
	ErrValidation = errors.New("validation error")

	// ErrEngineNotLoaded: predict invoked before load. Lifecycle bug.
	ErrEngineNotLoaded = errors.New("engine not loaded")
)

// SchemaMismatch wraps ErrSchemaMismatch with the offending field.
func SchemaMismatch(field string, detail string) error {
	return fmt.Errorf(`%w: field "%s": %s`, ErrSchemaMismatch, field, detail)
}

// Validation wraps ErrValidation with detail.
func Validation(detail string) error {
	return fmt.Errorf("%w: %s", ErrValidation, detail)
}
