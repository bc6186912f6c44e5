package models

// ImportRowError explains why a row was skipped.
type ImportRowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportSummary reports the outcome of a CSV import batch.
type ImportSummary struct {
	Entity   EntityType       `json:"entity"`
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}
