package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/events"
	"github.com/noah-isme/registrar-api/internal/integrity"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

// memoryStore applies plans to in-memory slices the way RegistryStore applies
// them to tables: all steps or none.
type memoryStore struct {
	mu          sync.Mutex
	students    []models.Student
	courses     []models.Course
	enrollments []models.Enrollment
	listCalls   int
	failWith    error
}

func (m *memoryStore) Execute(ctx context.Context, decide repository.Decider) (integrity.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return integrity.Outcome{}, m.failWith
	}
	snap := models.Snapshot{
		Students:    append([]models.Student(nil), m.students...),
		Courses:     append([]models.Course(nil), m.courses...),
		Enrollments: append([]models.Enrollment(nil), m.enrollments...),
	}
	outcome := decide(snap)
	if !outcome.Allowed() {
		return outcome, nil
	}
	for _, step := range outcome.Plan.Steps() {
		if err := applyStep(&snap, step); err != nil {
			return integrity.Outcome{}, err
		}
	}
	m.students, m.courses, m.enrollments = snap.Students, snap.Courses, snap.Enrollments
	return outcome, nil
}

func applyStep(snap *models.Snapshot, m integrity.Mutation) error {
	switch m.Entity {
	case models.EntityStudent:
		idx := -1
		for i, s := range snap.Students {
			if strings.EqualFold(s.Email, m.Key) {
				idx = i
			}
		}
		switch {
		case m.Op == integrity.OpInsert:
			snap.Students = append(snap.Students, *m.Student)
		case idx < 0:
			return sql.ErrNoRows
		case m.Op == integrity.OpUpdate:
			snap.Students[idx] = *m.Student
		default:
			snap.Students = append(snap.Students[:idx:idx], snap.Students[idx+1:]...)
		}
	case models.EntityCourse:
		idx := -1
		for i, c := range snap.Courses {
			if strings.EqualFold(c.Code, m.Key) {
				idx = i
			}
		}
		switch {
		case m.Op == integrity.OpInsert:
			snap.Courses = append(snap.Courses, *m.Course)
		case idx < 0:
			return sql.ErrNoRows
		case m.Op == integrity.OpUpdate:
			snap.Courses[idx] = *m.Course
		default:
			snap.Courses = append(snap.Courses[:idx:idx], snap.Courses[idx+1:]...)
		}
	case models.EntityEnrollment:
		idx := -1
		for i, e := range snap.Enrollments {
			if integrity.EnrollmentKey(e.ID) == m.Key {
				idx = i
			}
		}
		switch {
		case m.Op == integrity.OpInsert:
			snap.Enrollments = append(snap.Enrollments, *m.Enrollment)
		case idx < 0:
			return sql.ErrNoRows
		case m.Op == integrity.OpUpdate:
			snap.Enrollments[idx] = *m.Enrollment
		default:
			snap.Enrollments = append(snap.Enrollments[:idx:idx], snap.Enrollments[idx+1:]...)
		}
	}
	return nil
}

func (m *memoryStore) ListStudents(ctx context.Context) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]models.Student(nil), m.students...), m.failWith
}

func (m *memoryStore) ListCourses(ctx context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]models.Course(nil), m.courses...), m.failWith
}

func (m *memoryStore) ListEnrollments(ctx context.Context) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]models.Enrollment(nil), m.enrollments...), m.failWith
}

// memoryCache is a CacheRepository keeping JSON payloads in a map.
type memoryCache struct {
	mu       sync.Mutex
	items    map[string][]byte
	patterns []string
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string][]byte{}
	}
	c.items[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

type registryFixture struct {
	store       *memoryStore
	cache       *memoryCache
	hub         *events.Hub
	metrics     *MetricsService
	registry    *Registry
	students    *StudentService
	courses     *CourseService
	enrollments *EnrollmentService
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	f := &registryFixture{
		store:   &memoryStore{},
		cache:   &memoryCache{},
		hub:     events.NewHub(zap.NewNop()),
		metrics: NewMetricsService(),
	}
	cache := NewCacheService(f.cache, f.metrics, time.Minute, zap.NewNop(), true)
	f.registry = NewRegistry(f.store, cache, f.hub, f.metrics, ListLimits{DefaultPageSize: 10, MaxPageSize: 50}, zap.NewNop())
	f.registry.now = func() time.Time { return time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC) }
	f.students = NewStudentService(f.registry, nil, nil)
	f.courses = NewCourseService(f.registry, nil, nil)
	f.enrollments = NewEnrollmentService(f.registry, nil, nil)
	return f
}

// seed loads the common fixture: two courses, two students, two enrollments.
func (f *registryFixture) seed() {
	math := "MATH101"
	f.store.courses = []models.Course{
		{Code: "MATH101", Title: "Calculus", Credits: 4, Status: models.StatusActive},
		{Code: "HIST200", Title: "World History", Credits: 3, Status: models.StatusActive},
	}
	f.store.students = []models.Student{
		{Email: "alice@example.com", Name: "Alice", Status: models.StatusActive, Course: &math},
		{Email: "bob@example.com", Name: "Bob", Status: models.StatusActive},
	}
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.store.enrollments = []models.Enrollment{
		{ID: 1, StudentEmail: "alice@example.com", CourseCode: "MATH101", CreatedAt: created},
		{ID: 2, StudentEmail: "alice@example.com", CourseCode: "HIST200", CreatedAt: created},
	}
}

func ptr(s string) *string { return &s }
