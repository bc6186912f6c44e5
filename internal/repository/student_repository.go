package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

// StudentRepository manages persistence for student records. It runs against
// either the pool or an open transaction.
type StudentRepository struct {
	db sqlx.ExtContext
	sb squirrel.StatementBuilderType
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db sqlx.ExtContext) *StudentRepository {
	return &StudentRepository{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// List returns every student in insertion order.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT email, name, status, course FROM students ORDER BY position`
	students := make([]models.Student, 0)
	if err := sqlx.SelectContext(ctx, r.db, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByKey fetches a student by email, ignoring case.
func (r *StudentRepository) FindByKey(ctx context.Context, email string) (*models.Student, error) {
	const query = `SELECT email, name, status, course FROM students WHERE LOWER(email) = LOWER($1)`
	var student models.Student
	if err := sqlx.GetContext(ctx, r.db, &student, query, email); err != nil {
		return nil, err
	}
	return &student, nil
}

// Insert stores a new student.
func (r *StudentRepository) Insert(ctx context.Context, student *models.Student) error {
	const query = `INSERT INTO students (email, name, status, course) VALUES (:email, :name, :status, :course)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// Update replaces the student stored under key, which may change the key itself.
func (r *StudentRepository) Update(ctx context.Context, key string, student *models.Student) error {
	query, args, err := r.sb.Update("students").
		Set("email", student.Email).
		Set("name", student.Name).
		Set("status", student.Status).
		Set("course", student.Course).
		Where(squirrel.Eq{"email": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update student: %w", err)
	}
	return execOne(ctx, r.db, "update student", query, args...)
}

// Delete removes the student stored under key.
func (r *StudentRepository) Delete(ctx context.Context, key string) error {
	query, args, err := r.sb.Delete("students").Where(squirrel.Eq{"email": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete student: %w", err)
	}
	return execOne(ctx, r.db, "delete student", query, args...)
}
