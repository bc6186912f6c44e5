package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db sqlx.ExtContext
	sb squirrel.StatementBuilderType
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db sqlx.ExtContext) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// List returns every enrollment in id order.
func (r *EnrollmentRepository) List(ctx context.Context) ([]models.Enrollment, error) {
	const query = `SELECT id, student_email, course_code, created_at FROM enrollments ORDER BY id`
	enrollments := make([]models.Enrollment, 0)
	if err := sqlx.SelectContext(ctx, r.db, &enrollments, query); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID fetches a single enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const query = `SELECT id, student_email, course_code, created_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.db, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Insert stores a new enrollment with its pre-assigned id.
func (r *EnrollmentRepository) Insert(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `INSERT INTO enrollments (id, student_email, course_code, created_at)
        VALUES (:id, :student_email, :course_code, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// Update re-points an enrollment. created_at is never rewritten.
func (r *EnrollmentRepository) Update(ctx context.Context, id int64, enrollment *models.Enrollment) error {
	query, args, err := r.sb.Update("enrollments").
		Set("student_email", enrollment.StudentEmail).
		Set("course_code", enrollment.CourseCode).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update enrollment: %w", err)
	}
	return execOne(ctx, r.db, "update enrollment", query, args...)
}

// DeleteMany removes the given enrollments in one statement and fails unless
// every id existed.
func (r *EnrollmentRepository) DeleteMany(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := r.sb.Delete("enrollments").Where(squirrel.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete enrollments: %w", err)
	}
	return execN(ctx, r.db, "delete enrollments", int64(len(ids)), query, args...)
}
