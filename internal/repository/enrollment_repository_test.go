package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
)

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_email", "course_code", "created_at"})
}

func TestEnrollmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_email, course_code, created_at FROM enrollments ORDER BY id")).
		WillReturnRows(enrollmentRows().AddRow(int64(1), "alice@example.com", "MATH101", created))

	items, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)
	assert.True(t, created.Equal(items[0].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryInsertKeepsAssignedID(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(int64(6), "bob@example.com", "ART100", created).
		WillReturnResult(sqlmock.NewResult(6, 1))

	err := repo.Insert(context.Background(), &models.Enrollment{ID: 6, StudentEmail: "bob@example.com", CourseCode: "ART100", CreatedAt: created})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateLeavesCreatedAt(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET student_email = $1, course_code = $2 WHERE id = $3")).
		WithArgs("bob@example.com", "HIST200", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), 1, &models.Enrollment{ID: 1, StudentEmail: "bob@example.com", CourseCode: "HIST200"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteMany(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	require.NoError(t, repo.DeleteMany(context.Background(), nil))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id IN ($1,$2)")).
		WithArgs(int64(2), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, repo.DeleteMany(context.Background(), []int64{2, 5}))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id IN ($1,$2)")).
		WithArgs(int64(2), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.DeleteMany(context.Background(), []int64{2, 9})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
