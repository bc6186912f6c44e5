package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/listing"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.Status)
}

func TestCreateStudentRejectsDuplicateEmailIgnoringCase(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	ctx := context.Background()

	_, err := f.students.Create(ctx, StudentRequest{Email: "ALICE@example.com", Name: "Other", Status: models.StatusActive})
	requireCode(t, err, "DUPLICATE_EMAIL", http.StatusConflict)
	assert.Len(t, f.store.students, 2)

	_, err = f.students.Create(ctx, StudentRequest{Email: "carol@example.com", Name: "Carol", Status: models.StatusActive, Course: ptr("NOPE")})
	requireCode(t, err, "COURSE_NOT_FOUND", http.StatusConflict)

	created, err := f.students.Create(ctx, StudentRequest{Email: " carol@example.com ", Name: " Carol ", Status: models.StatusActive, Course: ptr("  ")})
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", created.Email)
	assert.Equal(t, "Carol", created.Name)
	assert.Nil(t, created.Course)
	assert.Equal(t, map[string]uint64{"REJECTED": 2, "ALLOWED": 1}, f.metrics.Snapshot().Decisions)
}

func TestCreateStudentValidatesPayload(t *testing.T) {
	f := newRegistryFixture(t)
	_, err := f.students.Create(context.Background(), StudentRequest{Email: "not-an-email", Name: "X", Status: models.StatusActive})
	requireCode(t, err, appErrors.ErrValidation.Code, http.StatusBadRequest)

	_, err = f.students.Create(context.Background(), StudentRequest{Email: "x@example.com", Name: "X", Status: "Paused"})
	requireCode(t, err, appErrors.ErrValidation.Code, http.StatusBadRequest)
	assert.Empty(t, f.store.students)
}

func TestStudentEmailChangeRewritesEnrollments(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	sub := f.hub.Subscribe(8)
	defer sub.Close()

	updated, err := f.students.Update(context.Background(), "ALICE@example.com", UpdateStudentRequest{
		StudentRequest: StudentRequest{Email: "alice.new@example.com", Name: "Alice", Status: models.StatusActive, Course: ptr("MATH101")},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice.new@example.com", updated.Email)

	for _, e := range f.store.enrollments {
		assert.Equal(t, "alice.new@example.com", e.StudentEmail)
	}
	assert.Equal(t, "alice.new@example.com", f.store.students[0].Email, "position is kept")

	first := <-sub.C
	assert.Equal(t, models.ChangeEvent{Revision: 1, Entity: models.EntityStudent, Action: models.ChangeUpdated, Key: "alice.new@example.com", At: first.At}, first)
	second, third := <-sub.C, <-sub.C
	assert.Equal(t, []string{"1", "2"}, []string{second.Key, third.Key})
	assert.Equal(t, uint64(3), f.registry.Revision())
}

func TestStudentDeactivationNeedsConfirmation(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	ctx := context.Background()
	req := UpdateStudentRequest{StudentRequest: StudentRequest{Email: "alice@example.com", Name: "Alice", Status: models.StatusInactive}}

	_, err := f.students.Update(ctx, "alice@example.com", req)
	requireCode(t, err, appErrors.ErrConfirmationRequired.Code, http.StatusPreconditionRequired)
	assert.Contains(t, err.Error(), "2 active enrollment(s)")
	assert.Equal(t, models.StatusActive, f.store.students[0].Status)
	assert.Zero(t, f.registry.Revision())

	req.Confirm = true
	updated, err := f.students.Update(ctx, "alice@example.com", req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, updated.Status)
	assert.Len(t, f.store.enrollments, 2, "enrollments survive deactivation")

	_, err = f.enrollments.Enroll(ctx, EnrollmentRequest{StudentEmail: "alice@example.com", CourseCode: "MATH101"})
	requireCode(t, err, "STUDENT_INACTIVE", http.StatusConflict)
}

func TestUpdateMissingStudentIsNotFound(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	_, err := f.students.Update(context.Background(), "ghost@example.com", UpdateStudentRequest{
		StudentRequest: StudentRequest{Email: "ghost@example.com", Name: "Ghost", Status: models.StatusActive},
	})
	requireCode(t, err, appErrors.ErrNotFound.Code, http.StatusNotFound)
}

func TestDeleteStudentRemovesEnrollments(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	summary, err := f.students.Delete(context.Background(), "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EnrollmentsDeleted)
	assert.Empty(t, f.store.enrollments)
	require.Len(t, f.store.students, 1)
	assert.Equal(t, "bob@example.com", f.store.students[0].Email)

	_, err = f.students.Delete(context.Background(), "alice@example.com")
	requireCode(t, err, appErrors.ErrNotFound.Code, http.StatusNotFound)
}

func TestCourseCodeChangeRepointsStudentsAndEnrollments(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	_, err := f.courses.Update(context.Background(), "math101", UpdateCourseRequest{
		CourseRequest: CourseRequest{Code: "MATH102", Title: "Calculus I", Credits: 4, Status: models.StatusActive},
	})
	require.NoError(t, err)
	assert.Equal(t, "MATH102", f.store.courses[0].Code)
	assert.Equal(t, "MATH102", f.store.enrollments[0].CourseCode)
	assert.Equal(t, "HIST200", f.store.enrollments[1].CourseCode)
	assert.Equal(t, "MATH102", f.store.students[0].CourseCode())

	_, err = f.courses.Update(context.Background(), "MATH102", UpdateCourseRequest{
		CourseRequest: CourseRequest{Code: "hist200", Title: "Clash", Credits: 4, Status: models.StatusActive},
	})
	requireCode(t, err, "DUPLICATE_CODE", http.StatusConflict)
}

func TestDeleteCourseClearsPointers(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	summary, err := f.courses.Delete(context.Background(), "MATH101")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EnrollmentsDeleted)
	assert.Equal(t, 1, summary.StudentsUpdated)
	assert.Nil(t, f.store.students[0].Course)
	require.Len(t, f.store.enrollments, 1)
	assert.Equal(t, "HIST200", f.store.enrollments[0].CourseCode)
}

func TestEnrollUsesStoredCasingAndNextID(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	ctx := context.Background()

	created, err := f.enrollments.Enroll(ctx, EnrollmentRequest{StudentEmail: "BOB@example.com", CourseCode: "math101"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)
	assert.Equal(t, "bob@example.com", created.StudentEmail)
	assert.Equal(t, "MATH101", created.CourseCode)
	assert.Equal(t, f.registry.now().UTC(), created.CreatedAt)

	_, err = f.enrollments.Enroll(ctx, EnrollmentRequest{StudentEmail: "bob@example.com", CourseCode: "MATH101"})
	requireCode(t, err, "DUPLICATE_ENROLLMENT", http.StatusConflict)

	_, err = f.enrollments.Enroll(ctx, EnrollmentRequest{StudentEmail: "bob@example.com", CourseCode: "CHEM1"})
	requireCode(t, err, "COURSE_NOT_FOUND", http.StatusConflict)

	_, err = f.enrollments.Enroll(ctx, EnrollmentRequest{StudentEmail: "", CourseCode: "CHEM1"})
	requireCode(t, err, appErrors.ErrValidation.Code, http.StatusBadRequest)
}

func TestUpdateAndDeleteEnrollment(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	ctx := context.Background()

	_, err := f.enrollments.Update(ctx, 2, EnrollmentRequest{StudentEmail: "alice@example.com", CourseCode: "MATH101"})
	requireCode(t, err, "DUPLICATE_ENROLLMENT", http.StatusConflict)

	moved, err := f.enrollments.Update(ctx, 2, EnrollmentRequest{StudentEmail: "bob@example.com", CourseCode: "HIST200"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved.ID)
	assert.Equal(t, "bob@example.com", moved.StudentEmail)

	require.NoError(t, f.enrollments.Delete(ctx, 1))
	requireCode(t, f.enrollments.Delete(ctx, 1), appErrors.ErrNotFound.Code, http.StatusNotFound)

	got, err := f.enrollments.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got.StudentEmail)
}

func TestListAppliesToggleAndPaging(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	ctx := context.Background()

	page, err := f.students.List(ctx, models.ListQuery{Toggle: "name", Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, listing.SortState{Key: "name", Direction: listing.Asc}, page.Sort)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "bob@example.com", page.Items[0].Email)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 1, TotalCount: 2, PageCount: 2}, page.Pagination)

	page, err = f.students.List(ctx, models.ListQuery{SortKey: "name", SortDir: "asc", Toggle: "name"})
	require.NoError(t, err)
	assert.Equal(t, listing.Desc, page.Sort.Direction)
	assert.Equal(t, "bob@example.com", page.Items[0].Email)

	page, err = f.students.List(ctx, models.ListQuery{Search: "ALI", Page: 9, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Pagination.PageSize)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, listing.SortState{}, page.Sort)
}

func TestCollectionsAreCachedPerRevision(t *testing.T) {
	f := newRegistryFixture(t)
	f.seed()
	ctx := context.Background()

	_, err := f.courses.List(ctx, models.ListQuery{})
	require.NoError(t, err)
	_, err = f.courses.Get(ctx, "hist200")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.listCalls)

	_, err = f.courses.Create(ctx, CourseRequest{Code: "CHEM1", Title: "Chemistry", Credits: 2, Status: models.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, []string{"collections:*"}, f.cache.patterns)

	page, err := f.courses.List(ctx, models.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.listCalls)
	assert.Equal(t, uint64(1), page.Revision)
	assert.Len(t, page.Items, 3)
}

func TestStoreFailuresMapToTypedErrors(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	req := StudentRequest{Email: "dan@example.com", Name: "Dan", Status: models.StatusActive}

	f.store.failWith = errors.New("connection refused")
	_, err := f.students.Create(ctx, req)
	requireCode(t, err, appErrors.ErrStorage.Code, http.StatusServiceUnavailable)
	_, err = f.students.List(ctx, models.ListQuery{})
	requireCode(t, err, appErrors.ErrStorage.Code, http.StatusServiceUnavailable)

	f.store.failWith = &repository.ConstraintError{Constraint: "students_email_lower_idx", Err: errors.New("duplicate key")}
	_, err = f.students.Create(ctx, req)
	requireCode(t, err, "DUPLICATE_EMAIL", http.StatusConflict)

	f.store.failWith = &repository.ConstraintError{Constraint: "enrollments_pkey", Err: errors.New("duplicate key")}
	_, err = f.enrollments.Enroll(ctx, EnrollmentRequest{StudentEmail: "dan@example.com", CourseCode: "X"})
	requireCode(t, err, appErrors.ErrConflict.Code, http.StatusConflict)
}
