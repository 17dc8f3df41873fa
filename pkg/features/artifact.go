package features

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/credfab/credfab/pkg/domain"
	"gopkg.in/yaml.v3"
)

// FittedField holds the frozen per-column parameters learned by Fit.
//
// Numeric fields carry an imputation value (training median) and
// standardization parameters. Categorical fields carry the training
// vocabulary (sorted) and the imputation mode; their encoded value is the
// vocabulary index, with len(Vocabulary) reserved as the unknown bucket.
type FittedField struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Required bool      `yaml:"required,omitempty"`

	Impute float64 `yaml:"impute,omitempty"`
	Mean   float64 `yaml:"mean,omitempty"`
	Std    float64 `yaml:"std,omitempty"`

	Vocabulary []string `yaml:"vocabulary,omitempty"`
	Mode       string   `yaml:"mode,omitempty"`
}

// FittedRatio is an engineered ratio feature with frozen scaling parameters.
type FittedRatio struct {
	Name        string  `yaml:"name"`
	Numerator   string  `yaml:"numerator"`
	Denominator string  `yaml:"denominator"`
	Mean        float64 `yaml:"mean"`
	Std         float64 `yaml:"std"`
}

// Artifact is the frozen outcome of fitting a Schema on training data.
//
// Once created, an Artifact is never mutated: Apply is pure and may be
// called concurrently. The field order fixes the output FeatureVector order.
type Artifact struct {
	SchemaVersion string        `yaml:"schemaVersion"`
	Fields        []FittedField `yaml:"fields"`
	Ratios        []FittedRatio `yaml:"ratios,omitempty"`
}

// FeatureNames returns the output schema: raw fields in declaration order,
// then ratios.
func (a *Artifact) FeatureNames() []string {
	names := make([]string, 0, len(a.Fields)+len(a.Ratios))
	for _, f := range a.Fields {
		names = append(names, f.Name)
	}
	for _, r := range a.Ratios {
		names = append(names, r.Name)
	}
	return names
}

// Fingerprint digests the output feature names, their kinds and the schema
// version. Two artifacts with the same fingerprint produce FeatureVectors a
// model can consume interchangeably; bundles are rejected on mismatch.
func (a *Artifact) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintln(h, a.SchemaVersion)
	for _, f := range a.Fields {
		fmt.Fprintf(h, "%s:%s\n", f.Name, f.Kind)
	}
	for _, r := range a.Ratios {
		fmt.Fprintf(h, "%s:ratio\n", r.Name)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Encode serializes the artifact for the artifact store.
func (a *Artifact) Encode() ([]byte, error) {
	return yaml.Marshal(a)
}

// DecodeArtifact is the inverse of Encode. Artifacts without a schema
// version are rejected rather than deserialized blindly.
func DecodeArtifact(b []byte) (*Artifact, error) {
	a := &Artifact{}
	if err := yaml.Unmarshal(b, a); err != nil {
		return nil, err
	}
	if a.SchemaVersion == "" {
		return nil, fmt.Errorf("%w: artifact carries no schema version", domain.ErrSchemaMismatch)
	}
	if len(a.Fields) == 0 {
		return nil, fmt.Errorf("%w: artifact carries no fields", domain.ErrSchemaMismatch)
	}
	return a, nil
}

// RequiredFields returns the names of raw fields that have no imputation
// rule and so must be present in every record.
func (a *Artifact) RequiredFields() []string {
	req := []string{}
	for _, f := range a.Fields {
		if f.Required {
			req = append(req, f.Name)
		}
	}
	return req
}

func (a *Artifact) String() string {
	return fmt.Sprintf("Artifact{%s: %s}", a.SchemaVersion, strings.Join(a.FeatureNames(), ", "))
}
