package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
)

func newRegistryMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() { _ = sqlxDB.Close() }
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"email", "name", "status", "course"})
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT email, name, status, course FROM students ORDER BY position")).
		WillReturnRows(studentRows().
			AddRow("alice@example.com", "Alice", "Active", "MATH101").
			AddRow("bob@example.com", "Bob", "Inactive", nil))

	students, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "MATH101", students[0].CourseCode())
	assert.Nil(t, students[1].Course)
	assert.Equal(t, models.StatusInactive, students[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByKeyIgnoresCase(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("ALICE@example.com").
		WillReturnRows(studentRows().AddRow("alice@example.com", "Alice", "Active", nil))

	student, err := repo.FindByKey(context.Background(), "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", student.Email)

	mock.ExpectQuery("FROM students WHERE").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByKey(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (email, name, status, course) VALUES ($1, $2, $3, $4)")).
		WithArgs("dave@example.com", "Dave", "Active", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.Student{Email: "dave@example.com", Name: "Dave", Status: models.StatusActive})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateChangesKey(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET email = $1, name = $2, status = $3, course = $4 WHERE email = $5")).
		WithArgs("alice@new.example.com", "Alice", "Active", "MATH101", "alice@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	course := "MATH101"
	err := repo.Update(context.Background(), "alice@example.com", &models.Student{Email: "alice@new.example.com", Name: "Alice", Status: models.StatusActive, Course: &course})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newRegistryMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE email = $1")).
		WithArgs("ghost@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
