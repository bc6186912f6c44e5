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

// CourseRequest holds the editable course fields.
type CourseRequest struct {
	Code    string        `json:"code" validate:"required,max=32"`
	Title   string        `json:"title" validate:"required,max=200"`
	Credits int           `json:"credits" validate:"required,min=1"`
	Status  models.Status `json:"status" validate:"required,oneof=Active Inactive"`
}

// UpdateCourseRequest adds the acknowledgement flag for deactivations.
type UpdateCourseRequest struct {
	CourseRequest
	Confirm bool `json:"confirm"`
}

func (r CourseRequest) normalise() CourseRequest {
	r.Code = strings.TrimSpace(r.Code)
	r.Title = strings.TrimSpace(r.Title)
	return r
}

func (r CourseRequest) course() models.Course {
	return models.Course{Code: r.Code, Title: r.Title, Credits: r.Credits, Status: r.Status}
}

// CourseService handles course catalogue use-cases.
type CourseService struct {
	registry  *Registry
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(registry *Registry, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{registry: registry, validator: validate, logger: logger}
}

// List returns one page of courses.
func (s *CourseService) List(ctx context.Context, query models.ListQuery) (*ListResult[models.Course], error) {
	revision := s.registry.Revision()
	courses, err := s.registry.courses(ctx)
	if err != nil {
		return nil, err
	}
	return present[models.Course](s.registry, courses, listing.CourseFields{}, query, revision), nil
}

// All returns the full collection in store order.
func (s *CourseService) All(ctx context.Context) ([]models.Course, error) {
	return s.registry.courses(ctx)
}

// Get returns a course by code, ignoring case.
func (s *CourseService) Get(ctx context.Context, code string) (*models.Course, error) {
	courses, err := s.registry.courses(ctx)
	if err != nil {
		return nil, err
	}
	course, ok := findCourse(courses, code)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return &course, nil
}

// Create adds a course to the catalogue.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	req = req.normalise()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	candidate := req.course()
	outcome, err := s.registry.execute(ctx, models.EntityCourse, func(snap models.Snapshot) integrity.Outcome {
		return integrity.ProposeCreateCourse(candidate, snap.Courses)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("course created", zap.String("code", candidate.Code))
	return outcome.Plan.Primary.Course, nil
}

// Update edits the course stored under code. A code change is carried to
// enrollments and to students pointing at the course.
func (s *CourseService) Update(ctx context.Context, code string, req UpdateCourseRequest) (*models.Course, error) {
	req.CourseRequest = req.CourseRequest.normalise()
	if err := s.validator.Struct(req.CourseRequest); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	next := req.course()
	outcome, err := s.registry.execute(ctx, models.EntityCourse, func(snap models.Snapshot) integrity.Outcome {
		return integrity.ProposeUpdateCourse(code, next, snap.Courses, snap.Enrollments, snap.Students, req.Confirm)
	})
	if err != nil {
		if outcome.Reason == integrity.ReasonCourseNotFound {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, err
	}
	summary := outcome.Plan.Summary()
	s.logger.Info("course updated",
		zap.String("code", outcome.Plan.Primary.Key),
		zap.String("new_code", next.Code),
		zap.Int("enrollments_rewritten", summary.EnrollmentsRewritten),
		zap.Int("students_repointed", summary.StudentsUpdated),
	)
	return outcome.Plan.Primary.Course, nil
}

// Delete removes a course, its enrollments and every student pointer to it.
func (s *CourseService) Delete(ctx context.Context, code string) (integrity.Summary, error) {
	outcome, err := s.registry.execute(ctx, models.EntityCourse, func(snap models.Snapshot) integrity.Outcome {
		return integrity.ProposeDeleteCourse(code, snap.Courses, snap.Enrollments, snap.Students)
	})
	if err != nil {
		return integrity.Summary{}, err
	}
	summary := outcome.Plan.Summary()
	s.logger.Info("course deleted",
		zap.String("code", outcome.Plan.Primary.Key),
		zap.Int("enrollments_deleted", summary.EnrollmentsDeleted),
		zap.Int("students_cleared", summary.StudentsUpdated),
	)
	return summary, nil
}
