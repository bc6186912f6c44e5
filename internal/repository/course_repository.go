package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

// CourseRepository manages persistence for the course catalogue.
type CourseRepository struct {
	db sqlx.ExtContext
	sb squirrel.StatementBuilderType
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db sqlx.ExtContext) *CourseRepository {
	return &CourseRepository{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// List returns every course in insertion order.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT code, title, credits, status FROM courses ORDER BY position`
	courses := make([]models.Course, 0)
	if err := sqlx.SelectContext(ctx, r.db, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByKey fetches a course by code, ignoring case.
func (r *CourseRepository) FindByKey(ctx context.Context, code string) (*models.Course, error) {
	const query = `SELECT code, title, credits, status FROM courses WHERE LOWER(code) = LOWER($1)`
	var course models.Course
	if err := sqlx.GetContext(ctx, r.db, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// Insert stores a new course.
func (r *CourseRepository) Insert(ctx context.Context, course *models.Course) error {
	const query = `INSERT INTO courses (code, title, credits, status) VALUES (:code, :title, :credits, :status)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// Update replaces the course stored under key.
func (r *CourseRepository) Update(ctx context.Context, key string, course *models.Course) error {
	query, args, err := r.sb.Update("courses").
		Set("code", course.Code).
		Set("title", course.Title).
		Set("credits", course.Credits).
		Set("status", course.Status).
		Where(squirrel.Eq{"code": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update course: %w", err)
	}
	return execOne(ctx, r.db, "update course", query, args...)
}

// Delete removes the course stored under key.
func (r *CourseRepository) Delete(ctx context.Context, key string) error {
	query, args, err := r.sb.Delete("courses").Where(squirrel.Eq{"code": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete course: %w", err)
	}
	return execOne(ctx, r.db, "delete course", query, args...)
}
