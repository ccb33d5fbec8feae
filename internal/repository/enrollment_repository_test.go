package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/enrollment-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_code", "course_code", "created_at", "closed_at", "state"})
}

func TestEnrollmentRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentRows().
		AddRow("enr-1", "EST2024001", "MAT101", time.Now(), nil, models.EnrollmentStateActive)
	mock.ExpectQuery("SELECT id, student_code, course_code, created_at, closed_at, state FROM enrollments").
		WithArgs("EST2024001", "MAT101", models.EnrollmentStateActive).
		WillReturnRows(rows)

	enrollment, err := repo.FindActive(context.Background(), "EST2024001", "MAT101")
	require.NoError(t, err)
	assert.Equal(t, "enr-1", enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindActiveMissing(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT id, student_code, course_code, created_at, closed_at, state FROM enrollments").
		WithArgs("EST2024001", "MAT101", models.EnrollmentStateActive).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background(), "EST2024001", "MAT101")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSeat(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE courses SET occupied_seats = occupied_seats").
		WithArgs("MAT101", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), "EST2024001", "MAT101", sqlmock.AnyArg(), nil, models.EnrollmentStateActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentCode: "EST2024001", CourseCode: "MAT101", State: models.EnrollmentStateActive}
	committed, err := repo.CreateWithSeat(context.Background(), enrollment)
	require.NoError(t, err)
	assert.True(t, committed)
	assert.NotEmpty(t, enrollment.ID, "repository assigns the id")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSeatGuardRejects(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE courses SET occupied_seats = occupied_seats").
		WithArgs("MAT101", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	enrollment := &models.Enrollment{StudentCode: "EST2024001", CourseCode: "MAT101", State: models.EnrollmentStateActive}
	committed, err := repo.CreateWithSeat(context.Background(), enrollment)
	require.NoError(t, err, "a full course is not an error")
	assert.False(t, committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransitionActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE enrollments SET state").
		WithArgs("enr-1", models.EnrollmentStateCancelled, now, models.EnrollmentStateActive).
		WillReturnRows(sqlmock.NewRows([]string{"course_code"}).AddRow("MAT101"))
	mock.ExpectExec("UPDATE courses SET occupied_seats = occupied_seats").
		WithArgs("MAT101", -1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	committed, err := repo.TransitionActive(context.Background(), "enr-1", models.EnrollmentStateCancelled, now)
	require.NoError(t, err)
	assert.True(t, committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransitionActiveAlreadyClosed(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE enrollments SET state").
		WithArgs("enr-1", models.EnrollmentStateCancelled, now, models.EnrollmentStateActive).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	committed, err := repo.TransitionActive(context.Background(), "enr-1", models.EnrollmentStateCancelled, now)
	require.NoError(t, err, "an already closed enrollment is not an error")
	assert.False(t, committed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransitionActiveSeatGuardFailure(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE enrollments SET state").
		WithArgs("enr-1", models.EnrollmentStateCompleted, now, models.EnrollmentStateActive).
		WillReturnRows(sqlmock.NewRows([]string{"course_code"}).AddRow("MAT101"))
	mock.ExpectExec("UPDATE courses SET occupied_seats = occupied_seats").
		WithArgs("MAT101", -1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.TransitionActive(context.Background(), "enr-1", models.EnrollmentStateCompleted, now)
	require.Error(t, err, "a seat counter below zero indicates corruption")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryActiveByStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentRows().
		AddRow("enr-1", "EST2024001", "MAT101", time.Now(), nil, models.EnrollmentStateActive).
		AddRow("enr-2", "EST2024001", "FIS101", time.Now(), nil, models.EnrollmentStateActive)
	mock.ExpectQuery("SELECT id, student_code, course_code, created_at, closed_at, state FROM enrollments").
		WithArgs("EST2024001", models.EnrollmentStateActive).
		WillReturnRows(rows)

	enrollments, err := repo.ActiveByStudent(context.Background(), "EST2024001")
	require.NoError(t, err)
	assert.Len(t, enrollments, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountByState(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"state", "count"}).
		AddRow(models.EnrollmentStateActive, 3).
		AddRow(models.EnrollmentStateCancelled, 1)
	mock.ExpectQuery("SELECT state, COUNT").WillReturnRows(rows)

	counts, err := repo.CountByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.EnrollmentStateActive])
	assert.Equal(t, 1, counts[models.EnrollmentStateCancelled])
	assert.Equal(t, 0, counts[models.EnrollmentStateCompleted])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountDistinctActiveStudents(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT student_code\) FROM enrollments`).
		WithArgs(models.EnrollmentStateActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountDistinctActiveStudents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
