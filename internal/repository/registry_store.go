package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/integrity"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/database"
)

// QueryObserver receives the duration of store operations.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// Decider computes an outcome from a consistent snapshot.
type Decider func(models.Snapshot) integrity.Outcome

// errRefused rolls back the transaction of a rejected or unconfirmed outcome.
var errRefused = errors.New("mutation refused")

// RegistryStore applies integrity plans atomically. Every Execute call holds
// a write lock on the three tables for the life of its transaction, so the
// snapshot a decision is made on cannot change underneath it.
type RegistryStore struct {
	db       *sqlx.DB
	logger   *zap.Logger
	observer QueryObserver
}

// NewRegistryStore wires the store.
func NewRegistryStore(db *sqlx.DB, logger *zap.Logger, observer QueryObserver) *RegistryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryStore{db: db, logger: logger, observer: observer}
}

// ListStudents returns all students in store order.
func (s *RegistryStore) ListStudents(ctx context.Context) ([]models.Student, error) {
	defer s.observe("list_students", time.Now())
	return NewStudentRepository(s.db).List(ctx)
}

// ListCourses returns all courses in store order.
func (s *RegistryStore) ListCourses(ctx context.Context) ([]models.Course, error) {
	defer s.observe("list_courses", time.Now())
	return NewCourseRepository(s.db).List(ctx)
}

// ListEnrollments returns all enrollments in id order.
func (s *RegistryStore) ListEnrollments(ctx context.Context) ([]models.Enrollment, error) {
	defer s.observe("list_enrollments", time.Now())
	return NewEnrollmentRepository(s.db).List(ctx)
}

// Ping checks database connectivity.
func (s *RegistryStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Snapshot loads all three collections outside of a transaction.
func (s *RegistryStore) Snapshot(ctx context.Context) (models.Snapshot, error) {
	defer s.observe("snapshot", time.Now())
	return loadSnapshot(ctx, s.db)
}

// Execute runs decide against a snapshot read inside a transaction and, when
// the outcome is allowed, applies its plan in that same transaction. Rejected
// and unconfirmed outcomes are returned with a nil error and nothing written.
func (s *RegistryStore) Execute(ctx context.Context, decide Decider) (integrity.Outcome, error) {
	defer s.observe("execute", time.Now())

	var outcome integrity.Outcome
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE students, courses, enrollments IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock registry tables: %w", err)
		}
		snapshot, err := loadSnapshot(ctx, tx)
		if err != nil {
			return err
		}
		outcome = decide(snapshot)
		if !outcome.Allowed() {
			return errRefused
		}
		return applyPlan(ctx, tx, outcome.Plan)
	})
	switch {
	case errors.Is(err, errRefused):
		return outcome, nil
	case err != nil:
		return integrity.Outcome{}, classify(err)
	}

	s.logger.Debug("registry plan applied",
		zap.String("entity", string(outcome.Plan.Primary.Entity)),
		zap.String("op", string(outcome.Plan.Primary.Op)),
		zap.String("key", outcome.Plan.Primary.Key),
		zap.Int("cascades", len(outcome.Plan.Cascades)),
	)
	return outcome, nil
}

func (s *RegistryStore) observe(label string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveDBQuery(label, time.Since(start))
	}
}

func loadSnapshot(ctx context.Context, db sqlx.ExtContext) (models.Snapshot, error) {
	students, err := NewStudentRepository(db).List(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	courses, err := NewCourseRepository(db).List(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	enrollments, err := NewEnrollmentRepository(db).List(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{Students: students, Courses: courses, Enrollments: enrollments}, nil
}

// applyPlan writes the plan's steps in order. Runs of consecutive enrollment
// deletes collapse into a single statement.
func applyPlan(ctx context.Context, db sqlx.ExtContext, plan integrity.Plan) error {
	students := NewStudentRepository(db)
	courses := NewCourseRepository(db)
	enrollments := NewEnrollmentRepository(db)

	steps := plan.Steps()
	for i := 0; i < len(steps); i++ {
		m := steps[i]

		if m.Entity == models.EntityEnrollment && m.Op == integrity.OpDelete {
			var ids []int64
			for ; i < len(steps) && steps[i].Entity == models.EntityEnrollment && steps[i].Op == integrity.OpDelete; i++ {
				id, err := parseEnrollmentKey(steps[i].Key)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			i--
			if err := enrollments.DeleteMany(ctx, ids); err != nil {
				return err
			}
			continue
		}

		if err := applyMutation(ctx, students, courses, enrollments, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMutation(ctx context.Context, students *StudentRepository, courses *CourseRepository, enrollments *EnrollmentRepository, m integrity.Mutation) error {
	switch m.Entity {
	case models.EntityStudent:
		switch m.Op {
		case integrity.OpInsert:
			return students.Insert(ctx, m.Student)
		case integrity.OpUpdate:
			return students.Update(ctx, m.Key, m.Student)
		case integrity.OpDelete:
			return students.Delete(ctx, m.Key)
		}
	case models.EntityCourse:
		switch m.Op {
		case integrity.OpInsert:
			return courses.Insert(ctx, m.Course)
		case integrity.OpUpdate:
			return courses.Update(ctx, m.Key, m.Course)
		case integrity.OpDelete:
			return courses.Delete(ctx, m.Key)
		}
	case models.EntityEnrollment:
		id, err := parseEnrollmentKey(m.Key)
		if err != nil {
			return err
		}
		switch m.Op {
		case integrity.OpInsert:
			return enrollments.Insert(ctx, m.Enrollment)
		case integrity.OpUpdate:
			return enrollments.Update(ctx, id, m.Enrollment)
		case integrity.OpDelete:
			return enrollments.DeleteMany(ctx, []int64{id})
		}
	}
	return fmt.Errorf("unsupported mutation %s on %s", m.Op, m.Entity)
}

func parseEnrollmentKey(key string) (int64, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid enrollment key %q: %w", key, err)
	}
	return id, nil
}
