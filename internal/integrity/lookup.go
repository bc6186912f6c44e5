package integrity

import (
	"strings"

	"github.com/noah-isme/registrar-api/internal/models"
)

func findStudent(students []models.Student, email string) (models.Student, bool) {
	for _, s := range students {
		if strings.EqualFold(s.Email, email) {
			return s, true
		}
	}
	return models.Student{}, false
}

func findCourse(courses []models.Course, code string) (models.Course, bool) {
	for _, c := range courses {
		if strings.EqualFold(c.Code, code) {
			return c, true
		}
	}
	return models.Course{}, false
}

func findEnrollment(enrollments []models.Enrollment, id int64) (models.Enrollment, bool) {
	for _, e := range enrollments {
		if e.ID == id {
			return e, true
		}
	}
	return models.Enrollment{}, false
}

// findPair looks for an enrollment on the same pair, ignoring excludeID.
func findPair(enrollments []models.Enrollment, studentEmail, courseCode string, excludeID int64) (models.Enrollment, bool) {
	for _, e := range enrollments {
		if excludeID != 0 && e.ID == excludeID {
			continue
		}
		if strings.EqualFold(e.StudentEmail, studentEmail) && strings.EqualFold(e.CourseCode, courseCode) {
			return e, true
		}
	}
	return models.Enrollment{}, false
}

func enrollmentsOfStudent(enrollments []models.Enrollment, email string) []models.Enrollment {
	var out []models.Enrollment
	for _, e := range enrollments {
		if strings.EqualFold(e.StudentEmail, email) {
			out = append(out, e)
		}
	}
	return out
}

func enrollmentsOfCourse(enrollments []models.Enrollment, code string) []models.Enrollment {
	var out []models.Enrollment
	for _, e := range enrollments {
		if strings.EqualFold(e.CourseCode, code) {
			out = append(out, e)
		}
	}
	return out
}

func studentsPointingAt(students []models.Student, code string) []models.Student {
	var out []models.Student
	for _, s := range students {
		if s.Course != nil && strings.EqualFold(*s.Course, code) {
			out = append(out, s)
		}
	}
	return out
}

func nextEnrollmentID(enrollments []models.Enrollment) int64 {
	var highest int64
	for _, e := range enrollments {
		if e.ID > highest {
			highest = e.ID
		}
	}
	return highest + 1
}
