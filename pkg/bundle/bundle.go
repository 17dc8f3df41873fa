package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/credfab/credfab/pkg/artifacts"
	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/features"
	"github.com/credfab/credfab/pkg/model"
	"github.com/credfab/credfab/pkg/selection"
)

// Manifest is the atomic unit published after a selection cycle: everything
// the serving engine needs to resolve one consistent (transformer, model)
// pair. The manifest is written last, after both blobs are durable, so a
// crash mid-publish never leaves a loadable partial bundle.
type Manifest struct {
	BundleVersion   string    `yaml:"bundleVersion"`
	SchemaVersion   string    `yaml:"schemaVersion"`
	Fingerprint     string    `yaml:"fingerprint"`
	TransformerRef  string    `yaml:"transformerRef"`
	ModelRef        string    `yaml:"modelRef"`
	SelectionMetric string    `yaml:"selectionMetric"`
	SelectionRunID  string    `yaml:"selectionRunId"`
	Threshold       float64   `yaml:"threshold"`
	CreatedAt       time.Time `yaml:"createdAt"`
}

// Bundle is a fully resolved manifest: the frozen transformer and the
// selected model, ready to serve. Immutable after Load.
type Bundle struct {
	Manifest    Manifest
	Transformer *features.Artifact
	Model       model.Model
}

// Publish stores the transformer next to the already-stored winning model
// and returns the manifest binding them.
//
// The winner's model artifact is read back and its fingerprint checked
// against the transformer before anything is published: a selection cycle
// can never bind incompatible halves together.
func Publish(
	ctx context.Context,
	store artifacts.Store,
	transformer *features.Artifact,
	sel selection.Selection,
	metricKey string,
	threshold float64,
) (*Manifest, error) {
	modelRef := artifacts.Ref(sel.Winner.ModelArtifact)
	blob, err := store.Get(ctx, modelRef)
	if err != nil {
		return nil, fmt.Errorf("%w: winning run %s: %w", domain.ErrIncompatibleBundle, sel.Winner.RunID, err)
	}
	_, fingerprint, err := model.Decode(blob)
	if err != nil {
		return nil, err
	}
	if fingerprint != transformer.Fingerprint() {
		return nil, fmt.Errorf(
			"%w: model of run %s was trained against fingerprint %.12s, transformer has %.12s",
			domain.ErrIncompatibleBundle, sel.Winner.RunID, fingerprint, transformer.Fingerprint(),
		)
	}

	encoded, err := transformer.Encode()
	if err != nil {
		return nil, err
	}
	transformerRef, err := store.Put(ctx, encoded)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		BundleVersion:   version(transformer.Fingerprint(), string(modelRef), sel.Winner.RunID),
		SchemaVersion:   transformer.SchemaVersion,
		Fingerprint:     transformer.Fingerprint(),
		TransformerRef:  string(transformerRef),
		ModelRef:        string(modelRef),
		SelectionMetric: metricKey,
		SelectionRunID:  sel.Winner.RunID,
		Threshold:       threshold,
		CreatedAt:       time.Now().UTC(),
	}
	return m, nil
}

// version derives a short, deterministic bundle identifier from what the
// bundle binds together; identical selection decisions yield identical
// versions.
func version(fingerprint, modelRef, runID string) string {
	h := sha256.New()
	fmt.Fprintln(h, fingerprint)
	fmt.Fprintln(h, modelRef)
	fmt.Fprintln(h, runID)
	return "bundle-" + hex.EncodeToString(h.Sum(nil))[:12]
}

// Load resolves a manifest against the artifact store and verifies the
// bundle is whole and self-consistent.
//
// Any missing blob or fingerprint disagreement is ErrIncompatibleBundle:
// a partial or mismatched bundle must never serve predictions.
func Load(ctx context.Context, store artifacts.Store, m Manifest) (*Bundle, error) {
	if m.TransformerRef == "" || m.ModelRef == "" || m.Fingerprint == "" {
		return nil, fmt.Errorf("%w: manifest %s is incomplete", domain.ErrIncompatibleBundle, m.BundleVersion)
	}

	tBlob, err := store.Get(ctx, artifacts.Ref(m.TransformerRef))
	if err != nil {
		return nil, fmt.Errorf("%w: transformer: %w", domain.ErrIncompatibleBundle, err)
	}
	transformer, err := features.DecodeArtifact(tBlob)
	if err != nil {
		return nil, err
	}

	mBlob, err := store.Get(ctx, artifacts.Ref(m.ModelRef))
	if err != nil {
		return nil, fmt.Errorf("%w: model: %w", domain.ErrIncompatibleBundle, err)
	}
	mdl, modelFingerprint, err := model.Decode(mBlob)
	if err != nil {
		return nil, err
	}

	if transformer.SchemaVersion != m.SchemaVersion {
		return nil, fmt.Errorf(
			"%w: manifest schema version %q, transformer has %q",
			domain.ErrIncompatibleBundle, m.SchemaVersion, transformer.SchemaVersion,
		)
	}
	if fp := transformer.Fingerprint(); fp != m.Fingerprint || fp != modelFingerprint {
		return nil, fmt.Errorf(
			"%w: fingerprints disagree (manifest %.12s, transformer %.12s, model %.12s)",
			domain.ErrIncompatibleBundle, m.Fingerprint, fp, modelFingerprint,
		)
	}

	return &Bundle{Manifest: m, Transformer: transformer, Model: mdl}, nil
}

// WriteManifest publishes the manifest to a file: written to a temp file in
// the same directory, then renamed over the target, so watchers only ever
// observe complete manifests.
func WriteManifest(m Manifest, path string) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadManifest reads a manifest file written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
