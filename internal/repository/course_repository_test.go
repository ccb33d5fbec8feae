package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/enrollment-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func courseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"code", "name", "credits", "instructor", "schedule", "total_seats", "occupied_seats", "created_at"})
}

func TestCourseRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().AddRow("MAT101", "Calculo", 4, "Dr. Perez", "Lun 8-10", 30, 12, time.Now())
	mock.ExpectQuery("SELECT code, name, credits, instructor, schedule, total_seats, occupied_seats, created_at FROM courses WHERE code").
		WithArgs("MAT101").
		WillReturnRows(rows)

	course, err := repo.FindByCode(context.Background(), "MAT101")
	require.NoError(t, err)
	assert.Equal(t, 18, course.AvailableSeats())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WithArgs("MAT101", "Calculo", 4, "Dr. Perez", "Lun 8-10", 30, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Course{
		Code: "MAT101", Name: "Calculo", Credits: 4, Instructor: "Dr. Perez",
		Schedule: "Lun 8-10", TotalSeats: 30, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryList(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().AddRow("FIS101", "Fisica", 3, "", "", 30, 10, time.Now())
	mock.ExpectQuery("SELECT code, name, credits, instructor, schedule, total_seats, occupied_seats, created_at").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListWithAvailableSeats(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("MAT101", "Calculo", 4, "", "", 30, 0, time.Now()).
		AddRow("FIS101", "Fisica", 3, "", "", 30, 29, time.Now())
	mock.ExpectQuery("FROM courses WHERE occupied_seats < total_seats").
		WillReturnRows(rows)

	courses, err := repo.ListWithAvailableSeats(context.Background())
	require.NoError(t, err)
	assert.Len(t, courses, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
