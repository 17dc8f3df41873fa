package features

import (
	"fmt"

	"github.com/credfab/credfab/pkg/domain"
)

// FieldKind declares how a raw column is interpreted.
type FieldKind string

const (
	Numeric     FieldKind = "numeric"
	Categorical FieldKind = "categorical"
)

// FieldDecl declares one raw input column.
//
// Required fields carry no imputation rule: a record missing one cannot be
// transformed. Non-required fields are imputed from training statistics.
type FieldDecl struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Required bool      `yaml:"required,omitempty"`
}

// RatioDecl declares an engineered feature: Numerator / (Denominator + eps).
//
// Both operands must be declared numeric fields. The ratio is computed from
// imputed, unscaled values, so training and serving share one code path.
type RatioDecl struct {
	Name        string `yaml:"name"`
	Numerator   string `yaml:"numerator"`
	Denominator string `yaml:"denominator"`
}

// Schema declares the raw input contract of a feature transformer before
// fitting. The fitted counterpart is Artifact.
type Schema struct {
	SchemaVersion string      `yaml:"schemaVersion"`
	Fields        []FieldDecl `yaml:"fields"`
	Ratios        []RatioDecl `yaml:"ratios,omitempty"`
}

// Validate checks internal consistency of the declaration.
func (s Schema) Validate() error {
	if s.SchemaVersion == "" {
		return fmt.Errorf("%w: schemaVersion is empty", domain.ErrSchemaMismatch)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: no fields declared", domain.ErrSchemaMismatch)
	}

	seen := map[string]FieldKind{}
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: unnamed field", domain.ErrSchemaMismatch)
		}
		if f.Kind != Numeric && f.Kind != Categorical {
			return domain.SchemaMismatch(f.Name, fmt.Sprintf("unknown kind %q", f.Kind))
		}
		if _, dup := seen[f.Name]; dup {
			return domain.SchemaMismatch(f.Name, "declared twice")
		}
		seen[f.Name] = f.Kind
	}

	for _, r := range s.Ratios {
		if r.Name == "" {
			return fmt.Errorf("%w: unnamed ratio", domain.ErrSchemaMismatch)
		}
		if _, dup := seen[r.Name]; dup {
			return domain.SchemaMismatch(r.Name, "ratio shadows a field")
		}
		seen[r.Name] = ""
		for _, operand := range []string{r.Numerator, r.Denominator} {
			if kind, ok := seen[operand]; !ok || kind != Numeric {
				return domain.SchemaMismatch(r.Name, fmt.Sprintf("operand %q is not a declared numeric field", operand))
			}
		}
	}
	return nil
}

// DefaultLoanSchema is the canonical schema of the loan-default dataset.
//
// Field order fixes the model input order; changing it changes the
// fingerprint and invalidates every published bundle.
func DefaultLoanSchema() Schema {
	return Schema{
		SchemaVersion: "loan-v1",
		Fields: []FieldDecl{
			{Name: "credit_lines_outstanding", Kind: Numeric, Required: true},
			{Name: "loan_amt_outstanding", Kind: Numeric, Required: true},
			{Name: "total_debt_outstanding", Kind: Numeric, Required: true},
			{Name: "income", Kind: Numeric, Required: true},
			{Name: "years_employed", Kind: Numeric},
			{Name: "fico_score", Kind: Numeric},
		},
		Ratios: []RatioDecl{
			{Name: "debt_to_income_ratio", Numerator: "total_debt_outstanding", Denominator: "income"},
			{Name: "loan_to_income_ratio", Numerator: "loan_amt_outstanding", Denominator: "income"},
		},
	}
}
