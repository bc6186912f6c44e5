package models

// Status is the lifecycle flag shared by students and courses.
type Status string

// Supported statuses.
const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Student represents a learner identified by email.
type Student struct {
	Email  string  `db:"email" json:"email"`
	Name   string  `db:"name" json:"name"`
	Status Status  `db:"status" json:"status"`
	Course *string `db:"course" json:"course,omitempty"`
}

// IsActive reports whether the student may take new enrollments.
func (s Student) IsActive() bool {
	return s.Status == StatusActive
}

// CourseCode returns the denormalized course pointer or an empty string.
func (s Student) CourseCode() string {
	if s.Course == nil {
		return ""
	}
	return *s.Course
}
