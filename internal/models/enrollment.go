package models

import "time"

// Enrollment captures a student's registration to a course.
type Enrollment struct {
	ID           int64     `db:"id" json:"id"`
	StudentEmail string    `db:"student_email" json:"student_email"`
	CourseCode   string    `db:"course_code" json:"course_code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Snapshot is a consistent view of the three collections.
type Snapshot struct {
	Students    []Student
	Courses     []Course
	Enrollments []Enrollment
}
