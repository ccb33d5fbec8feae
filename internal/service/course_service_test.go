package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/enrollment-api/internal/models"
	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]*models.Course
}

func (m *mockCourseRepo) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	if c, ok := m.courses[code]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]*models.Course)
	}
	m.courses[course.Code] = course
	return nil
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, c := range m.courses {
		if filter.AvailableOnly && !c.HasAvailableSeats() {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func TestCourseServiceCreate(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := NewCourseService(repo, zap.NewNop())

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		Code: "mat101", Name: "calculo", Credits: 4, TotalSeats: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "MAT101", course.Code)
	assert.Equal(t, 0, course.OccupiedSeats)
}

func TestCourseServiceCreateDuplicate(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"MAT101": {Code: "MAT101"},
	}}
	svc := NewCourseService(repo, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		Code: "MAT101", Name: "Calculo", Credits: 4, TotalSeats: 30,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceCreateInvalidCredits(t *testing.T) {
	svc := NewCourseService(&mockCourseRepo{}, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		Code: "MAT101", Name: "Calculo", Credits: 9, TotalSeats: 30,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceGet(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"MAT101": {Code: "MAT101", Name: "Calculo"},
	}}
	svc := NewCourseService(repo, zap.NewNop())

	course, err := svc.Get(context.Background(), "mat101")
	require.NoError(t, err)
	assert.Equal(t, "Calculo", course.Name)

	_, err = svc.Get(context.Background(), "ZZZ999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceListAvailableOnly(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"MAT101": {Code: "MAT101", TotalSeats: 30, OccupiedSeats: 30},
		"FIS101": {Code: "FIS101", TotalSeats: 30, OccupiedSeats: 10},
	}}
	svc := NewCourseService(repo, zap.NewNop())

	courses, total, err := svc.List(context.Background(), models.CourseFilter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, courses, 1)
	assert.Equal(t, "FIS101", courses[0].Code)
}
