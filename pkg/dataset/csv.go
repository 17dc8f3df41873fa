package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/credfab/credfab/pkg/domain"
)

// ReadCSV reads a raw tabular dataset: a header row of raw field names, one
// record per following row, all values kept as text.
func ReadCSV(r io.Reader) ([]domain.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: dataset has no header row", domain.ErrInsufficientData)
	}
	if err != nil {
		return nil, err
	}

	records := []domain.RawRecord{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(domain.RawRecord, len(header))
		for i, name := range header {
			rec[name] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadCSVFile is ReadCSV over a file path.
func ReadCSVFile(path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
