package domain

import "strings"

// RawRecord is one row of raw tabular input: raw column name -> raw value.
//
// Values are kept as text, as they arrive from CSV or a request body.
// A missing value is an absent key or one of the conventional
// missing-markers ("", "NA", "NaN", "null").
//
// RawRecords are the source of truth and are never mutated after read.
type RawRecord map[string]string

// Missing reports whether the named raw field is absent or holds a
// missing-marker.
func (r RawRecord) Missing(name string) bool {
	v, ok := r[name]
	if !ok {
		return true
	}
	switch strings.TrimSpace(v) {
	case "", "NA", "NaN", "null":
		return true
	}
	return false
}

// Clone returns an independent copy.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FeatureVector is the ordered numeric output of the feature transformer.
//
// Names is the transformer's output schema and is shared (read-only) among
// all vectors produced by one artifact; Values[i] belongs to Names[i].
type FeatureVector struct {
	Names  []string
	Values []float64
}

// Partition is one split of the dataset: feature vectors with their labels.
//
// Labels are binary: 1 = default, 0 = fully repaid.
type Partition struct {
	X []FeatureVector
	Y []int
}

// Len returns the number of examples in the partition.
func (p Partition) Len() int {
	return len(p.X)
}

// PositiveRate returns the share of examples labeled 1.
func (p Partition) PositiveRate() float64 {
	if len(p.Y) == 0 {
		return 0
	}
	n := 0
	for _, y := range p.Y {
		if y == 1 {
			n++
		}
	}
	return float64(n) / float64(len(p.Y))
}
