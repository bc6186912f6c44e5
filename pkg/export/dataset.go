// Package export renders tabular datasets to CSV and PDF and reads CSV back.
package export

import (
	"strings"
	"time"
)

// Dataset is an ordered table: one label per column and one value per column
// in every row.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat normalises a format name; empty input means CSV.
func ParseFormat(raw string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, true
	case "pdf":
		return FormatPDF, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Filename builds "<base>-<timestamp>.<ext>". The timestamp is the ISO-8601
// UTC time with ':' and '.' replaced by '-' and cut to minute precision,
// e.g. students-2024-05-01T12-34.csv.
func Filename(base string, format Format, at time.Time) string {
	stamp := at.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	if len(stamp) > 16 {
		stamp = stamp[:16]
	}
	return base + "-" + stamp + "." + string(format)
}
