package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/integrity"
	"github.com/noah-isme/registrar-api/internal/listing"
	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

// StudentRequest holds the editable student fields.
type StudentRequest struct {
	Email  string        `json:"email" validate:"required,email,max=254"`
	Name   string        `json:"name" validate:"required,max=200"`
	Status models.Status `json:"status" validate:"required,oneof=Active Inactive"`
	Course *string       `json:"course,omitempty" validate:"omitempty,max=32"`
}

// UpdateStudentRequest adds the acknowledgement flag for deactivations.
type UpdateStudentRequest struct {
	StudentRequest
	Confirm bool `json:"confirm"`
}

func (r StudentRequest) normalise() models.Student {
	student := models.Student{
		Email:  strings.TrimSpace(r.Email),
		Name:   strings.TrimSpace(r.Name),
		Status: r.Status,
	}
	if r.Course != nil {
		if code := strings.TrimSpace(*r.Course); code != "" {
			student.Course = &code
		}
	}
	return student
}

// StudentService handles student use-cases.
type StudentService struct {
	registry  *Registry
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(registry *Registry, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{registry: registry, validator: validate, logger: logger}
}

// List returns one page of students.
func (s *StudentService) List(ctx context.Context, query models.ListQuery) (*ListResult[models.Student], error) {
	revision := s.registry.Revision()
	students, err := s.registry.students(ctx)
	if err != nil {
		return nil, err
	}
	return present[models.Student](s.registry, students, listing.StudentFields{}, query, revision), nil
}

// All returns the full collection in store order.
func (s *StudentService) All(ctx context.Context) ([]models.Student, error) {
	return s.registry.students(ctx)
}

// Get returns a student by email, ignoring case.
func (s *StudentService) Get(ctx context.Context, email string) (*models.Student, error) {
	students, err := s.registry.students(ctx)
	if err != nil {
		return nil, err
	}
	student, ok := findStudent(students, email)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return &student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	candidate := req.normalise()
	if err := s.validate(req, candidate); err != nil {
		return nil, err
	}
	outcome, err := s.registry.execute(ctx, models.EntityStudent, func(snap models.Snapshot) integrity.Outcome {
		if o := integrity.CheckCoursePointer(candidate, snap.Courses); !o.Allowed() {
			return o
		}
		return integrity.ProposeCreateStudent(candidate, snap.Students)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("student created", zap.String("email", candidate.Email))
	return outcome.Plan.Primary.Student, nil
}

// Update edits the student stored under email. Deactivating a student that
// still has enrollments fails with CONFIRMATION_REQUIRED unless req.Confirm.
func (s *StudentService) Update(ctx context.Context, email string, req UpdateStudentRequest) (*models.Student, error) {
	next := req.normalise()
	if err := s.validate(req.StudentRequest, next); err != nil {
		return nil, err
	}
	outcome, err := s.registry.execute(ctx, models.EntityStudent, func(snap models.Snapshot) integrity.Outcome {
		if o := integrity.CheckCoursePointer(next, snap.Courses); !o.Allowed() {
			return o
		}
		return integrity.ProposeUpdateStudent(email, next, snap.Students, snap.Enrollments, req.Confirm)
	})
	if err != nil {
		if outcome.Reason == integrity.ReasonStudentNotFound {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	summary := outcome.Plan.Summary()
	s.logger.Info("student updated",
		zap.String("email", outcome.Plan.Primary.Key),
		zap.String("new_email", next.Email),
		zap.Int("enrollments_rewritten", summary.EnrollmentsRewritten),
	)
	return outcome.Plan.Primary.Student, nil
}

// Delete removes a student together with its enrollments.
func (s *StudentService) Delete(ctx context.Context, email string) (integrity.Summary, error) {
	outcome, err := s.registry.execute(ctx, models.EntityStudent, func(snap models.Snapshot) integrity.Outcome {
		return integrity.ProposeDeleteStudent(email, snap.Enrollments, snap.Students)
	})
	if err != nil {
		return integrity.Summary{}, err
	}
	summary := outcome.Plan.Summary()
	s.logger.Info("student deleted", zap.String("email", outcome.Plan.Primary.Key), zap.Int("enrollments_deleted", summary.EnrollmentsDeleted))
	return summary, nil
}

func (s *StudentService) validate(req StudentRequest, normalised models.Student) error {
	req.Email = normalised.Email
	req.Name = normalised.Name
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	return nil
}
