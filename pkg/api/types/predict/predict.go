// Package predict holds the wire types of the prediction endpoint.
package predict

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/credfab/credfab/pkg/domain"
)

// Request is one applicant record. Fields arrive as a flat JSON object;
// values may be JSON numbers or strings, and either form is accepted for a
// numeric field. Nested objects and arrays are rejected.
type Request struct {
	Record domain.RawRecord
}

func (r *Request) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	fields := map[string]interface{}{}
	if err := dec.Decode(&fields); err != nil {
		return err
	}

	record := domain.RawRecord{}
	for name, value := range fields {
		switch v := value.(type) {
		case nil:
			record[name] = ""
		case string:
			record[name] = v
		case json.Number:
			record[name] = v.String()
		case bool:
			record[name] = fmt.Sprintf("%t", v)
		default:
			return fmt.Errorf("field %q: expected a scalar, got %T", name, value)
		}
	}

	r.Record = record
	return nil
}

func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string(r.Record))
}

// Response carries the scored record back to the caller.
type Response struct {
	DefaultProbability float64         `json:"default_probability"`
	Decision           domain.Decision `json:"decision"`
	ModelVersion       string          `json:"model_version"`
}

// FromPrediction converts the engine's result into its wire form.
func FromPrediction(p domain.Prediction) Response {
	return Response{
		DefaultProbability: p.Probability,
		Decision:           p.Decision,
		ModelVersion:       p.ModelVersion,
	}
}
