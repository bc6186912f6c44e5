package listing

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/registrar-api/internal/models"
)

// StudentFields exposes email, name, status and course.
type StudentFields struct{}

// Values implements Fields.
func (StudentFields) Values(s models.Student) []string {
	return []string{s.Email, s.Name, string(s.Status), s.CourseCode()}
}

// Value implements Fields.
func (StudentFields) Value(s models.Student, key string) string {
	switch normaliseKey(key) {
	case "email":
		return s.Email
	case "name":
		return s.Name
	case "status":
		return string(s.Status)
	case "course":
		return s.CourseCode()
	}
	return ""
}

// CourseFields exposes code, title, credits and status.
type CourseFields struct{}

// Values implements Fields.
func (CourseFields) Values(c models.Course) []string {
	return []string{c.Code, c.Title, strconv.Itoa(c.Credits), string(c.Status)}
}

// Value implements Fields. Credits compare as text like every other column.
func (CourseFields) Value(c models.Course, key string) string {
	switch normaliseKey(key) {
	case "code":
		return c.Code
	case "title":
		return c.Title
	case "credits":
		return strconv.Itoa(c.Credits)
	case "status":
		return string(c.Status)
	}
	return ""
}

// EnrollmentFields exposes id, student email, course code and creation time.
type EnrollmentFields struct{}

// Values implements Fields.
func (EnrollmentFields) Values(e models.Enrollment) []string {
	return []string{strconv.FormatInt(e.ID, 10), e.StudentEmail, e.CourseCode, e.CreatedAt.UTC().Format(time.RFC3339)}
}

// Value implements Fields.
func (EnrollmentFields) Value(e models.Enrollment, key string) string {
	switch normaliseKey(key) {
	case "id":
		return strconv.FormatInt(e.ID, 10)
	case "studentemail":
		return e.StudentEmail
	case "coursecode":
		return e.CourseCode
	case "createdat":
		return e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return ""
}

// normaliseKey lets callers use camelCase or snake_case column names.
func normaliseKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", ""))
}
