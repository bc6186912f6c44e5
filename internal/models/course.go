package models

// Course represents a catalogue entry identified by code.
type Course struct {
	Code    string `db:"code" json:"code"`
	Title   string `db:"title" json:"title"`
	Credits int    `db:"credits" json:"credits"`
	Status  Status `db:"status" json:"status"`
}

// IsActive reports whether the course accepts new enrollments.
func (c Course) IsActive() bool {
	return c.Status == StatusActive
}
