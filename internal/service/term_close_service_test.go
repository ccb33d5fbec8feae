package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/enrollment-api/internal/models"
	"github.com/campusops/enrollment-api/pkg/jobs"
)

func newTermFixture() (*TermCloseService, *mockEnrollments, *mockCourses) {
	courses := &mockCourses{courses: map[string]*models.Course{
		"MAT101": {Code: "MAT101", Name: "Calculo", Credits: 4, TotalSeats: 30, OccupiedSeats: 2},
		"FIS101": {Code: "FIS101", Name: "Fisica", Credits: 3, TotalSeats: 30, OccupiedSeats: 1},
	}}
	enrollments := newMockEnrollments(courses)
	cacheSvc := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	svc := NewTermCloseService(enrollments, cacheSvc, zap.NewNop(), jobs.QueueConfig{Workers: 1})
	return svc, enrollments, courses
}

func TestCloseTermCompletesActiveEnrollments(t *testing.T) {
	svc, enrollments, courses := newTermFixture()
	enrollments.byID["e1"] = &models.Enrollment{ID: "e1", StudentCode: "EST2024001", CourseCode: "MAT101", State: models.EnrollmentStateActive, CreatedAt: time.Now().UTC()}
	enrollments.byID["e2"] = &models.Enrollment{ID: "e2", StudentCode: "EST2024002", CourseCode: "MAT101", State: models.EnrollmentStateActive, CreatedAt: time.Now().UTC()}
	enrollments.byID["e3"] = &models.Enrollment{ID: "e3", StudentCode: "EST2024001", CourseCode: "FIS101", State: models.EnrollmentStateCancelled, CreatedAt: time.Now().UTC()}

	closed, err := svc.CloseTerm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	assert.Equal(t, models.EnrollmentStateCompleted, enrollments.byID["e1"].State)
	assert.Equal(t, models.EnrollmentStateCompleted, enrollments.byID["e2"].State)
	assert.Equal(t, models.EnrollmentStateCancelled, enrollments.byID["e3"].State, "closed enrollments stay untouched")
	assert.NotNil(t, enrollments.byID["e1"].ClosedAt)
	assert.Equal(t, 0, courses.courses["MAT101"].OccupiedSeats, "completion releases seats")
}

func TestCloseTermEmpty(t *testing.T) {
	svc, _, _ := newTermFixture()

	closed, err := svc.CloseTerm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestEnqueueRequiresStartedQueue(t *testing.T) {
	svc, _, _ := newTermFixture()

	_, err := svc.Enqueue()
	assert.Error(t, err)
}

func TestEnqueueRunsJob(t *testing.T) {
	svc, enrollments, _ := newTermFixture()
	enrollments.byID["e1"] = &models.Enrollment{ID: "e1", StudentCode: "EST2024001", CourseCode: "MAT101", State: models.EnrollmentStateActive, CreatedAt: time.Now().UTC()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	jobID, err := svc.Enqueue()
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		return enrollments.stateOf("e1") == models.EnrollmentStateCompleted
	}, 2*time.Second, 10*time.Millisecond)
}
