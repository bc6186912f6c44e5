package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVExporter renders datasets as CSV text.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the header row followed by one record per row. Records are
// joined by '\n' with no trailing newline.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	lines := make([]string, 0, len(data.Rows)+1)
	lines = append(lines, encodeRecord(data.Headers))
	for i, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return nil, fmt.Errorf("csv row %d has %d fields, want %d", i+1, len(row), len(data.Headers))
		}
		lines = append(lines, encodeRecord(row))
	}
	return []byte(strings.Join(lines, "\n")), nil
}

func encodeRecord(fields []string) string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = EscapeField(f)
	}
	return strings.Join(out, ",")
}

// EscapeField quotes a field only when it contains a comma, a double quote or
// a line break; embedded quotes are doubled.
func EscapeField(field string) string {
	if !strings.ContainsAny(field, ",\"\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// ReadCSV parses CSV input into records. Ragged rows are returned as-is so
// the caller can report them per line.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}
