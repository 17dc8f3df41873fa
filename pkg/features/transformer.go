package features

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/credfab/credfab/pkg/domain"
)

// ratioEpsilon keeps engineered ratios finite for zero denominators.
// Value matches the training data preparation of the loan dataset.
const ratioEpsilon = 1e-6

// Fit learns imputation and scaling parameters from the training records
// only, and freezes them into an Artifact.
//
// Numeric columns: imputation = median, scaling = (x - mean) / std.
// Categorical columns: imputation = mode, encoding = sorted-vocabulary
// index. Ratios: computed from imputed unscaled operands, then standardized
// like numerics.
//
// Fit never sees validation, test, or production data; that is the caller's
// contract and the whole point of the artifact.
func Fit(schema Schema, records []domain.RawRecord) (*Artifact, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no training records to fit on", domain.ErrInsufficientData)
	}

	a := &Artifact{SchemaVersion: schema.SchemaVersion}

	// raw numeric column values after imputation, for ratio fitting
	unscaled := map[string][]float64{}

	for _, decl := range schema.Fields {
		switch decl.Kind {
		case Numeric:
			fitted, col, err := fitNumeric(decl, records)
			if err != nil {
				return nil, err
			}
			a.Fields = append(a.Fields, fitted)
			unscaled[decl.Name] = col
		case Categorical:
			fitted, err := fitCategorical(decl, records)
			if err != nil {
				return nil, err
			}
			a.Fields = append(a.Fields, fitted)
		}
	}

	for _, decl := range schema.Ratios {
		num := unscaled[decl.Numerator]
		den := unscaled[decl.Denominator]
		col := make([]float64, len(records))
		for i := range records {
			col[i] = num[i] / (den[i] + ratioEpsilon)
		}
		mean, std := meanStd(col)
		a.Ratios = append(a.Ratios, FittedRatio{
			Name:        decl.Name,
			Numerator:   decl.Numerator,
			Denominator: decl.Denominator,
			Mean:        mean,
			Std:         std,
		})
	}

	return a, nil
}

func fitNumeric(decl FieldDecl, records []domain.RawRecord) (FittedField, []float64, error) {
	present := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Missing(decl.Name) {
			if decl.Required {
				return FittedField{}, nil, domain.SchemaMismatch(decl.Name, "required field missing in training data")
			}
			continue
		}
		v, err := ParseNumeric(decl.Name, r[decl.Name])
		if err != nil {
			return FittedField{}, nil, err
		}
		present = append(present, v)
	}
	if len(present) == 0 {
		return FittedField{}, nil, domain.SchemaMismatch(decl.Name, "column has no values in training data")
	}

	impute := median(present)

	// the post-imputation column is what downstream sees, so statistics
	// (and ratio operands) are computed over it
	col := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Missing(decl.Name) {
			col = append(col, impute)
			continue
		}
		v, _ := ParseNumeric(decl.Name, r[decl.Name])
		col = append(col, v)
	}
	mean, std := meanStd(col)

	return FittedField{
		Name:     decl.Name,
		Kind:     Numeric,
		Required: decl.Required,
		Impute:   impute,
		Mean:     mean,
		Std:      std,
	}, col, nil
}

func fitCategorical(decl FieldDecl, records []domain.RawRecord) (FittedField, error) {
	counts := map[string]int{}
	for _, r := range records {
		if r.Missing(decl.Name) {
			if decl.Required {
				return FittedField{}, domain.SchemaMismatch(decl.Name, "required field missing in training data")
			}
			continue
		}
		counts[strings.TrimSpace(r[decl.Name])]++
	}
	if len(counts) == 0 {
		return FittedField{}, domain.SchemaMismatch(decl.Name, "column has no values in training data")
	}

	vocab := make([]string, 0, len(counts))
	for v := range counts {
		vocab = append(vocab, v)
	}
	sort.Strings(vocab)

	// mode; ties resolved to the lexicographically smallest value
	mode := vocab[0]
	for _, v := range vocab {
		if counts[v] > counts[mode] {
			mode = v
		}
	}

	return FittedField{
		Name:       decl.Name,
		Kind:       Categorical,
		Required:   decl.Required,
		Vocabulary: vocab,
		Mode:       mode,
	}, nil
}

// Apply transforms one raw record with the frozen artifact. It is pure:
// calling it twice with the same inputs yields identical vectors, and it
// never mutates the artifact.
func Apply(a *Artifact, record domain.RawRecord) (domain.FeatureVector, error) {
	names := a.FeatureNames()
	values := make([]float64, 0, len(names))

	// imputed, unscaled numeric values feed the ratio features
	unscaled := map[string]float64{}

	for _, f := range a.Fields {
		switch f.Kind {
		case Numeric:
			v, err := numericValue(f, record)
			if err != nil {
				return domain.FeatureVector{}, err
			}
			unscaled[f.Name] = v
			values = append(values, standardize(v, f.Mean, f.Std))
		case Categorical:
			idx, err := categoricalIndex(f, record)
			if err != nil {
				return domain.FeatureVector{}, err
			}
			values = append(values, float64(idx))
		}
	}

	for _, r := range a.Ratios {
		v := unscaled[r.Numerator] / (unscaled[r.Denominator] + ratioEpsilon)
		values = append(values, standardize(v, r.Mean, r.Std))
	}

	return domain.FeatureVector{Names: names, Values: values}, nil
}

// ApplyAll transforms a batch, failing on the first bad record.
func ApplyAll(a *Artifact, records []domain.RawRecord) ([]domain.FeatureVector, error) {
	out := make([]domain.FeatureVector, 0, len(records))
	for i, r := range records {
		fv, err := Apply(a, r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, fv)
	}
	return out, nil
}

func numericValue(f FittedField, record domain.RawRecord) (float64, error) {
	if record.Missing(f.Name) {
		if f.Required {
			return 0, domain.SchemaMismatch(f.Name, "required field missing and has no imputation rule")
		}
		return f.Impute, nil
	}
	return ParseNumeric(f.Name, record[f.Name])
}

func categoricalIndex(f FittedField, record domain.RawRecord) (int, error) {
	value := f.Mode
	if record.Missing(f.Name) {
		if f.Required {
			return 0, domain.SchemaMismatch(f.Name, "required field missing and has no imputation rule")
		}
	} else {
		value = strings.TrimSpace(record[f.Name])
	}

	idx := sort.SearchStrings(f.Vocabulary, value)
	if idx < len(f.Vocabulary) && f.Vocabulary[idx] == value {
		return idx, nil
	}
	// outside the training vocabulary: reserved unknown bucket, not an error
	return len(f.Vocabulary), nil
}

// ParseNumeric parses one raw numeric value, reporting failures as
// SchemaMismatch on the named field.
func ParseNumeric(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, domain.SchemaMismatch(name, fmt.Sprintf("%q is not numeric", raw))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.SchemaMismatch(name, fmt.Sprintf("%q is not a finite number", raw))
	}
	return v, nil
}

func standardize(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}

func meanStd(col []float64) (float64, float64) {
	n := float64(len(col))
	mean := 0.0
	for _, v := range col {
		mean += v
	}
	mean /= n

	variance := 0.0
	for _, v := range col {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / n)
}

func median(col []float64) float64 {
	s := append([]float64(nil), col...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
