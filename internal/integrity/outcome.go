package integrity

import (
	"strconv"

	"github.com/noah-isme/registrar-api/internal/models"
)

// Decision is the verdict of a proposed mutation.
type Decision string

// Engine decisions.
const (
	DecisionAllowed           Decision = "ALLOWED"
	DecisionRejected          Decision = "REJECTED"
	DecisionNeedsConfirmation Decision = "NEEDS_CONFIRMATION"
)

// Reason explains a rejection.
type Reason string

// Rejection reasons.
const (
	ReasonDuplicateEmail      Reason = "DUPLICATE_EMAIL"
	ReasonDuplicateCode       Reason = "DUPLICATE_CODE"
	ReasonStudentNotFound     Reason = "STUDENT_NOT_FOUND"
	ReasonCourseNotFound      Reason = "COURSE_NOT_FOUND"
	ReasonStudentInactive     Reason = "STUDENT_INACTIVE"
	ReasonCourseInactive      Reason = "COURSE_INACTIVE"
	ReasonDuplicateEnrollment Reason = "DUPLICATE_ENROLLMENT"
	ReasonEnrollmentNotFound  Reason = "ENROLLMENT_NOT_FOUND"
)

// Op is a primitive store write.
type Op string

// Store writes.
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Mutation is one write against the store. Key addresses the record as it
// exists before the write; exactly one record pointer matching Entity is set
// for inserts and updates.
type Mutation struct {
	Op         Op
	Entity     models.EntityType
	Key        string
	Student    *models.Student
	Course     *models.Course
	Enrollment *models.Enrollment
}

// Plan is a primary mutation plus the cascade writes that keep the
// referential invariants intact. All of it is applied atomically or not at all.
type Plan struct {
	Primary  Mutation
	Cascades []Mutation
}

// Steps returns the mutations in application order: dependents are removed
// before the record they point at, and rewritten after it.
func (p Plan) Steps() []Mutation {
	steps := make([]Mutation, 0, len(p.Cascades)+1)
	if p.Primary.Op == OpDelete {
		steps = append(steps, p.Cascades...)
		return append(steps, p.Primary)
	}
	steps = append(steps, p.Primary)
	return append(steps, p.Cascades...)
}

// Count returns how many cascade mutations match the entity and op.
func (p Plan) Count(entity models.EntityType, op Op) int {
	n := 0
	for _, m := range p.Cascades {
		if m.Entity == entity && m.Op == op {
			n++
		}
	}
	return n
}

// Summary counts the cascade writes of a plan, for confirmation prompts.
type Summary struct {
	EnrollmentsDeleted   int `json:"enrollments_deleted"`
	EnrollmentsRewritten int `json:"enrollments_rewritten"`
	StudentsUpdated      int `json:"students_updated"`
}

// Summary reports what the plan touches beyond its primary mutation.
func (p Plan) Summary() Summary {
	return Summary{
		EnrollmentsDeleted:   p.Count(models.EntityEnrollment, OpDelete),
		EnrollmentsRewritten: p.Count(models.EntityEnrollment, OpUpdate),
		StudentsUpdated:      p.Count(models.EntityStudent, OpUpdate),
	}
}

// Outcome is the tagged result of every Propose* call.
type Outcome struct {
	Decision Decision
	Reason   Reason
	Warning  string
	Plan     Plan
}

// Allowed reports whether the plan may be applied.
func (o Outcome) Allowed() bool {
	return o.Decision == DecisionAllowed
}

func allow(plan Plan) Outcome {
	return Outcome{Decision: DecisionAllowed, Plan: plan}
}

func reject(reason Reason) Outcome {
	return Outcome{Decision: DecisionRejected, Reason: reason}
}

func needsConfirmation(warning string) Outcome {
	return Outcome{Decision: DecisionNeedsConfirmation, Warning: warning}
}

// EnrollmentKey formats an enrollment id as a mutation key.
func EnrollmentKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
