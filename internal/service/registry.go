package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/registrar-api/internal/integrity"
	"github.com/noah-isme/registrar-api/internal/listing"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

const collectionCachePattern = "collections:*"

type registryStore interface {
	Execute(ctx context.Context, decide repository.Decider) (integrity.Outcome, error)
	ListStudents(ctx context.Context) ([]models.Student, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	ListEnrollments(ctx context.Context) ([]models.Enrollment, error)
}

type changePublisher interface {
	Publish(entity models.EntityType, action models.ChangeAction, key string) models.ChangeEvent
	Revision() uint64
}

// ListLimits bounds list page sizes.
type ListLimits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// ListResult is one rendered page of a collection. Revision is the store
// revision the page was computed at.
type ListResult[T any] struct {
	Items      []T                `json:"items"`
	Pagination *models.Pagination `json:"-"`
	Sort       listing.SortState  `json:"sort"`
	Revision   uint64             `json:"revision"`
}

// Registry is the write path shared by the entity services: every mutation
// goes through the integrity engine inside one store transaction, then
// caches are dropped and a change event is published.
type Registry struct {
	store   registryStore
	cache   *CacheService
	events  changePublisher
	metrics *MetricsService
	limits  ListLimits
	logger  *zap.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewRegistry wires the registry core. cache, events and metrics may be nil.
func NewRegistry(store registryStore, cache *CacheService, events changePublisher, metrics *MetricsService, limits ListLimits, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.DefaultPageSize <= 0 {
		limits.DefaultPageSize = 20
	}
	if limits.MaxPageSize < limits.DefaultPageSize {
		limits.MaxPageSize = limits.DefaultPageSize
	}
	return &Registry{
		store:   store,
		cache:   cache,
		events:  events,
		metrics: metrics,
		limits:  limits,
		logger:  logger,
		now:     time.Now,
	}
}

// Revision returns the current change revision.
func (r *Registry) Revision() uint64 {
	if r.events == nil {
		return 0
	}
	return r.events.Revision()
}

// execute runs decide through the store and translates the outcome.
func (r *Registry) execute(ctx context.Context, entity models.EntityType, decide repository.Decider) (integrity.Outcome, error) {
	outcome, err := r.store.Execute(ctx, decide)
	if err != nil {
		return integrity.Outcome{}, r.storeError(err, entity)
	}
	r.metrics.RecordDecision(string(entity), string(outcome.Decision), string(outcome.Reason))

	switch outcome.Decision {
	case integrity.DecisionRejected:
		return outcome, rejection(outcome.Reason)
	case integrity.DecisionNeedsConfirmation:
		return outcome, appErrors.Clone(appErrors.ErrConfirmationRequired, outcome.Warning)
	}

	r.afterCommit(ctx, outcome.Plan)
	return outcome, nil
}

func (r *Registry) afterCommit(ctx context.Context, plan integrity.Plan) {
	r.cache.Invalidate(ctx, collectionCachePattern)
	if r.events == nil {
		return
	}
	for _, m := range plan.Steps() {
		r.events.Publish(m.Entity, changeAction(m.Op), mutationKey(m))
		r.metrics.RecordEvent()
	}
}

func (r *Registry) storeError(err error, entity models.EntityType) error {
	var constraintErr *repository.ConstraintError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", entity))
	case errors.As(err, &constraintErr):
		reason, ok := constraintReason(constraintErr.Constraint, entity)
		if !ok {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "concurrent write conflict")
		}
		return appErrors.Wrap(err, string(reason), appErrors.ErrConflict.Status, reasonMessages[reason])
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "request cancelled")
	}
	r.logger.Error("registry store failure", zap.String("entity", string(entity)), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
}

func (r *Registry) students(ctx context.Context) ([]models.Student, error) {
	return loadCollection(ctx, r, models.EntityStudent, r.store.ListStudents)
}

func (r *Registry) courses(ctx context.Context) ([]models.Course, error) {
	return loadCollection(ctx, r, models.EntityCourse, r.store.ListCourses)
}

func (r *Registry) enrollments(ctx context.Context) ([]models.Enrollment, error) {
	return loadCollection(ctx, r, models.EntityEnrollment, r.store.ListEnrollments)
}

// loadCollection reads a full collection through the cache. Concurrent misses
// for the same key share one store read. Keys embed the revision, so a fill
// that raced a commit is never served afterwards.
func loadCollection[T any](ctx context.Context, r *Registry, entity models.EntityType, load func(context.Context) ([]T, error)) ([]T, error) {
	key := fmt.Sprintf("collections:%s:r%d", entity, r.Revision())

	var cached []T
	if r.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		rows, err := load(ctx)
		if err != nil {
			return nil, err
		}
		r.cache.Set(ctx, key, rows, 0)
		return rows, nil
	})
	if err != nil {
		return nil, r.storeError(err, entity)
	}
	return v.([]T), nil
}

// present renders one page of rows for q.
func present[T any](r *Registry, rows []T, fields listing.Fields[T], q models.ListQuery, revision uint64) *ListResult[T] {
	state := listing.SortState{Key: strings.ToLower(strings.TrimSpace(q.SortKey)), Direction: listing.ParseDirection(q.SortDir)}
	if toggle := strings.ToLower(strings.TrimSpace(q.Toggle)); toggle != "" {
		state = listing.Toggle(state, toggle)
	}
	if state.Direction == listing.None && q.Toggle == "" {
		state.Key = ""
	}

	size := q.PageSize
	if size <= 0 {
		size = r.limits.DefaultPageSize
	}
	if size > r.limits.MaxPageSize {
		size = r.limits.MaxPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	out := listing.Present(rows, fields, listing.Request{
		Query:     q.Search,
		SortKey:   state.Key,
		Direction: state.Direction,
		PageIndex: page - 1,
		PageSize:  size,
	})
	return &ListResult[T]{
		Items: out.Rows,
		Pagination: &models.Pagination{
			Page:       out.PageIndex + 1,
			PageSize:   size,
			TotalCount: out.Total,
			PageCount:  out.PageCount,
		},
		Sort:     state,
		Revision: revision,
	}
}

var reasonMessages = map[integrity.Reason]string{
	integrity.ReasonDuplicateEmail:      "a student with this email already exists",
	integrity.ReasonDuplicateCode:       "a course with this code already exists",
	integrity.ReasonStudentNotFound:     "student does not exist",
	integrity.ReasonCourseNotFound:      "course does not exist",
	integrity.ReasonStudentInactive:     "student is inactive",
	integrity.ReasonCourseInactive:      "course is inactive",
	integrity.ReasonDuplicateEnrollment: "student is already enrolled in this course",
	integrity.ReasonEnrollmentNotFound:  "enrollment not found",
}

func rejection(reason integrity.Reason) error {
	if reason == integrity.ReasonEnrollmentNotFound {
		return appErrors.Clone(appErrors.ErrNotFound, reasonMessages[reason])
	}
	message, ok := reasonMessages[reason]
	if !ok {
		message = strings.ToLower(strings.ReplaceAll(string(reason), "_", " "))
	}
	return appErrors.Constraint(string(reason), message)
}

// constraintReason maps a database constraint name to the engine reason a
// concurrent writer would have produced. Enrollment id collisions have no
// engine counterpart.
func constraintReason(constraint string, entity models.EntityType) (integrity.Reason, bool) {
	name := strings.ToLower(constraint)
	switch {
	case strings.HasPrefix(name, "students"):
		return integrity.ReasonDuplicateEmail, true
	case strings.HasPrefix(name, "courses"):
		return integrity.ReasonDuplicateCode, true
	case strings.HasPrefix(name, "enrollments") && !strings.HasSuffix(name, "_pkey"):
		return integrity.ReasonDuplicateEnrollment, true
	case name == "" && entity == models.EntityStudent:
		return integrity.ReasonDuplicateEmail, true
	case name == "" && entity == models.EntityCourse:
		return integrity.ReasonDuplicateCode, true
	}
	return "", false
}

func changeAction(op integrity.Op) models.ChangeAction {
	switch op {
	case integrity.OpInsert:
		return models.ChangeCreated
	case integrity.OpDelete:
		return models.ChangeDeleted
	default:
		return models.ChangeUpdated
	}
}

// mutationKey is the key a record has after the mutation.
func mutationKey(m integrity.Mutation) string {
	switch {
	case m.Op == integrity.OpDelete:
		return m.Key
	case m.Student != nil:
		return m.Student.Email
	case m.Course != nil:
		return m.Course.Code
	case m.Enrollment != nil:
		return integrity.EnrollmentKey(m.Enrollment.ID)
	}
	return m.Key
}

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
