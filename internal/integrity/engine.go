// Package integrity decides whether registry mutations are allowed and which
// cascade writes must accompany them. Every function is a pure function of the
// snapshot it is given; persistence is the caller's job.
package integrity

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/registrar-api/internal/models"
)

// ProposeCreateStudent rejects a candidate whose email is already taken.
func ProposeCreateStudent(candidate models.Student, students []models.Student) Outcome {
	if _, ok := findStudent(students, candidate.Email); ok {
		return reject(ReasonDuplicateEmail)
	}
	record := candidate
	return allow(Plan{Primary: Mutation{Op: OpInsert, Entity: models.EntityStudent, Key: record.Email, Student: &record}})
}

// ProposeCreateCourse rejects a candidate whose code is already taken.
func ProposeCreateCourse(candidate models.Course, courses []models.Course) Outcome {
	if _, ok := findCourse(courses, candidate.Code); ok {
		return reject(ReasonDuplicateCode)
	}
	record := candidate
	return allow(Plan{Primary: Mutation{Op: OpInsert, Entity: models.EntityCourse, Key: record.Code, Course: &record}})
}

// CheckCoursePointer rejects a student whose denormalized course does not exist.
func CheckCoursePointer(student models.Student, courses []models.Course) Outcome {
	if student.Course == nil || strings.TrimSpace(*student.Course) == "" {
		return allow(Plan{})
	}
	if _, ok := findCourse(courses, *student.Course); !ok {
		return reject(ReasonCourseNotFound)
	}
	return allow(Plan{})
}

// ProposeUpdateStudent validates an edit of the student stored under oldEmail.
// Deactivating a student that still has enrollments needs acknowledgement;
// with ack set the same call is allowed.
func ProposeUpdateStudent(oldEmail string, next models.Student, students []models.Student, enrollments []models.Enrollment, ack bool) Outcome {
	current, ok := findStudent(students, oldEmail)
	if !ok {
		return reject(ReasonStudentNotFound)
	}
	if !strings.EqualFold(next.Email, current.Email) {
		if _, taken := findStudent(students, next.Email); taken {
			return reject(ReasonDuplicateEmail)
		}
	}

	linked := enrollmentsOfStudent(enrollments, current.Email)
	if current.IsActive() && next.Status == models.StatusInactive && len(linked) > 0 && !ack {
		return needsConfirmation(fmt.Sprintf("student %s has %d active enrollment(s); they will not be deleted, only blocked from new ones", current.Email, len(linked)))
	}

	record := next
	plan := Plan{Primary: Mutation{Op: OpUpdate, Entity: models.EntityStudent, Key: current.Email, Student: &record}}
	if next.Email != current.Email {
		for _, e := range linked {
			rewritten := e
			rewritten.StudentEmail = next.Email
			plan.Cascades = append(plan.Cascades, enrollmentUpdate(rewritten))
		}
	}
	return allow(plan)
}

// ProposeUpdateCourse mirrors ProposeUpdateStudent for courses. A code change
// also re-points every student whose denormalized course equals the old code.
func ProposeUpdateCourse(oldCode string, next models.Course, courses []models.Course, enrollments []models.Enrollment, students []models.Student, ack bool) Outcome {
	current, ok := findCourse(courses, oldCode)
	if !ok {
		return reject(ReasonCourseNotFound)
	}
	if !strings.EqualFold(next.Code, current.Code) {
		if _, taken := findCourse(courses, next.Code); taken {
			return reject(ReasonDuplicateCode)
		}
	}

	linked := enrollmentsOfCourse(enrollments, current.Code)
	if current.IsActive() && next.Status == models.StatusInactive && len(linked) > 0 && !ack {
		return needsConfirmation(fmt.Sprintf("course %s has %d active enrollment(s); they will not be deleted, only blocked from new ones", current.Code, len(linked)))
	}

	record := next
	plan := Plan{Primary: Mutation{Op: OpUpdate, Entity: models.EntityCourse, Key: current.Code, Course: &record}}
	if next.Code != current.Code {
		for _, e := range linked {
			rewritten := e
			rewritten.CourseCode = next.Code
			plan.Cascades = append(plan.Cascades, enrollmentUpdate(rewritten))
		}
		code := next.Code
		for _, s := range studentsPointingAt(students, current.Code) {
			repointed := s
			repointed.Course = &code
			plan.Cascades = append(plan.Cascades, studentUpdate(repointed))
		}
	}
	return allow(plan)
}

// ProposeDeleteStudent is always allowed; the student's enrollments go with it.
func ProposeDeleteStudent(email string, enrollments []models.Enrollment, students []models.Student) Outcome {
	key := email
	if current, ok := findStudent(students, email); ok {
		key = current.Email
	}
	plan := Plan{Primary: Mutation{Op: OpDelete, Entity: models.EntityStudent, Key: key}}
	for _, e := range enrollmentsOfStudent(enrollments, email) {
		plan.Cascades = append(plan.Cascades, enrollmentDelete(e))
	}
	return allow(plan)
}

// ProposeDeleteCourse is always allowed; enrollments are removed and student
// course pointers cleared.
func ProposeDeleteCourse(code string, courses []models.Course, enrollments []models.Enrollment, students []models.Student) Outcome {
	key := code
	if current, ok := findCourse(courses, code); ok {
		key = current.Code
	}
	plan := Plan{Primary: Mutation{Op: OpDelete, Entity: models.EntityCourse, Key: key}}
	for _, e := range enrollmentsOfCourse(enrollments, code) {
		plan.Cascades = append(plan.Cascades, enrollmentDelete(e))
	}
	for _, s := range studentsPointingAt(students, code) {
		cleared := s
		cleared.Course = nil
		plan.Cascades = append(plan.Cascades, studentUpdate(cleared))
	}
	return allow(plan)
}

// ProposeCreateEnrollment gates a new enrollment. Checks run in a fixed order
// and the first failure wins. The new record takes the stored casing of both
// keys, createdAt = now and the next free integer id.
func ProposeCreateEnrollment(studentEmail, courseCode string, students []models.Student, courses []models.Course, enrollments []models.Enrollment, now time.Time) Outcome {
	student, course, outcome := checkEnrollmentTarget(studentEmail, courseCode, students, courses)
	if outcome != nil {
		return *outcome
	}
	if _, dup := findPair(enrollments, studentEmail, courseCode, 0); dup {
		return reject(ReasonDuplicateEnrollment)
	}
	record := models.Enrollment{
		ID:           nextEnrollmentID(enrollments),
		StudentEmail: student.Email,
		CourseCode:   course.Code,
		CreatedAt:    now.UTC(),
	}
	return allow(Plan{Primary: Mutation{Op: OpInsert, Entity: models.EntityEnrollment, Key: EnrollmentKey(record.ID), Enrollment: &record}})
}

// ProposeUpdateEnrollment re-points an enrollment. The same checks as creation
// apply; colliding with the enrollment itself is fine.
func ProposeUpdateEnrollment(id int64, studentEmail, courseCode string, students []models.Student, courses []models.Course, enrollments []models.Enrollment) Outcome {
	current, ok := findEnrollment(enrollments, id)
	if !ok {
		return reject(ReasonEnrollmentNotFound)
	}
	student, course, outcome := checkEnrollmentTarget(studentEmail, courseCode, students, courses)
	if outcome != nil {
		return *outcome
	}
	if _, dup := findPair(enrollments, studentEmail, courseCode, id); dup {
		return reject(ReasonDuplicateEnrollment)
	}
	record := current
	record.StudentEmail = student.Email
	record.CourseCode = course.Code
	return allow(Plan{Primary: enrollmentUpdate(record)})
}

// ProposeDeleteEnrollment removes a single enrollment; nothing depends on it.
func ProposeDeleteEnrollment(id int64, enrollments []models.Enrollment) Outcome {
	current, ok := findEnrollment(enrollments, id)
	if !ok {
		return reject(ReasonEnrollmentNotFound)
	}
	return allow(Plan{Primary: enrollmentDelete(current)})
}

func checkEnrollmentTarget(studentEmail, courseCode string, students []models.Student, courses []models.Course) (models.Student, models.Course, *Outcome) {
	student, ok := findStudent(students, studentEmail)
	if !ok {
		o := reject(ReasonStudentNotFound)
		return models.Student{}, models.Course{}, &o
	}
	course, ok := findCourse(courses, courseCode)
	if !ok {
		o := reject(ReasonCourseNotFound)
		return models.Student{}, models.Course{}, &o
	}
	if !student.IsActive() {
		o := reject(ReasonStudentInactive)
		return models.Student{}, models.Course{}, &o
	}
	if !course.IsActive() {
		o := reject(ReasonCourseInactive)
		return models.Student{}, models.Course{}, &o
	}
	return student, course, nil
}

func enrollmentUpdate(e models.Enrollment) Mutation {
	return Mutation{Op: OpUpdate, Entity: models.EntityEnrollment, Key: EnrollmentKey(e.ID), Enrollment: &e}
}

func enrollmentDelete(e models.Enrollment) Mutation {
	return Mutation{Op: OpDelete, Entity: models.EntityEnrollment, Key: EnrollmentKey(e.ID)}
}

func studentUpdate(s models.Student) Mutation {
	return Mutation{Op: OpUpdate, Entity: models.EntityStudent, Key: s.Email, Student: &s}
}
