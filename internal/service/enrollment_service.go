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

// EnrollmentRequest names the student and course of an enrollment.
type EnrollmentRequest struct {
	StudentEmail string `json:"student_email" validate:"required,email"`
	CourseCode   string `json:"course_code" validate:"required"`
}

func (r EnrollmentRequest) normalise() EnrollmentRequest {
	r.StudentEmail = strings.TrimSpace(r.StudentEmail)
	r.CourseCode = strings.TrimSpace(r.CourseCode)
	return r
}

// EnrollmentService handles enrollment use-cases.
type EnrollmentService struct {
	registry  *Registry
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(registry *Registry, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{registry: registry, validator: validate, logger: logger}
}

// List returns one page of enrollments.
func (s *EnrollmentService) List(ctx context.Context, query models.ListQuery) (*ListResult[models.Enrollment], error) {
	revision := s.registry.Revision()
	enrollments, err := s.registry.enrollments(ctx)
	if err != nil {
		return nil, err
	}
	return present[models.Enrollment](s.registry, enrollments, listing.EnrollmentFields{}, query, revision), nil
}

// All returns the full collection in id order.
func (s *EnrollmentService) All(ctx context.Context) ([]models.Enrollment, error) {
	return s.registry.enrollments(ctx)
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id int64) (*models.Enrollment, error) {
	enrollments, err := s.registry.enrollments(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range enrollments {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
}

// Enroll registers a student to a course. Both must exist and be active.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollmentRequest) (*models.Enrollment, error) {
	req = req.normalise()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	now := s.registry.now()
	outcome, err := s.registry.execute(ctx, models.EntityEnrollment, func(snap models.Snapshot) integrity.Outcome {
		return integrity.ProposeCreateEnrollment(req.StudentEmail, req.CourseCode, snap.Students, snap.Courses, snap.Enrollments, now)
	})
	if err != nil {
		return nil, err
	}
	created := outcome.Plan.Primary.Enrollment
	s.logger.Info("enrollment created", zap.Int64("id", created.ID), zap.String("student", created.StudentEmail), zap.String("course", created.CourseCode))
	return created, nil
}

// Update re-points an enrollment to another student or course.
func (s *EnrollmentService) Update(ctx context.Context, id int64, req EnrollmentRequest) (*models.Enrollment, error) {
	req = req.normalise()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	outcome, err := s.registry.execute(ctx, models.EntityEnrollment, func(snap models.Snapshot) integrity.Outcome {
		return integrity.ProposeUpdateEnrollment(id, req.StudentEmail, req.CourseCode, snap.Students, snap.Courses, snap.Enrollments)
	})
	if err != nil {
		return nil, err
	}
	return outcome.Plan.Primary.Enrollment, nil
}

// Delete removes one enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, id int64) error {
	_, err := s.registry.execute(ctx, models.EntityEnrollment, func(snap models.Snapshot) integrity.Outcome {
		return integrity.ProposeDeleteEnrollment(id, snap.Enrollments)
	})
	return err
}
