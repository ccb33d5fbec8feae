package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/enrollment-api/internal/models"
)

func student(program string) *models.Student {
	return &models.Student{Code: "EST2024001", FirstName: "Ana", LastName: "Torres", Program: program}
}

func course(code string, total, occupied int) *models.Course {
	return &models.Course{Code: code, Name: "Course", Credits: 3, TotalSeats: total, OccupiedSeats: occupied}
}

func active(courseCodes ...string) []models.Enrollment {
	out := make([]models.Enrollment, 0, len(courseCodes))
	for _, code := range courseCodes {
		out = append(out, models.Enrollment{CourseCode: code, State: models.EnrollmentStateActive})
	}
	return out
}

func completed(courseCodes ...string) []models.Enrollment {
	out := make([]models.Enrollment, 0, len(courseCodes))
	for _, code := range courseCodes {
		out = append(out, models.Enrollment{CourseCode: code, State: models.EnrollmentStateCompleted})
	}
	return out
}

func TestCanEnrollOK(t *testing.T) {
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT101", 30, 0), nil, nil)
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonOK, decision.Reason)
	assert.NotEmpty(t, decision.Message)
}

func TestCanEnrollNoSeats(t *testing.T) {
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT101", 30, 30), nil, nil)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoSeats, decision.Reason)
}

func TestCanEnrollLastSeat(t *testing.T) {
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT101", 30, 29), nil, nil)
	assert.True(t, decision.Allowed)
}

func TestCanEnrollAlreadyEnrolled(t *testing.T) {
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT101", 30, 1), active("MAT101"), nil)
	assert.Equal(t, ReasonAlreadyEnrolled, decision.Reason)
}

func TestCanEnrollLoadLimit(t *testing.T) {
	five := active("A101", "B101", "C101", "D101", "E101")
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT101", 30, 0), five, nil)
	assert.True(t, decision.Allowed, "five active courses leave room for one more")

	six := active("A101", "B101", "C101", "D101", "E101", "F101")
	decision = CanEnroll(student("ADMINISTRACION"), course("MAT101", 30, 0), six, nil)
	assert.Equal(t, ReasonLoadLimitExceeded, decision.Reason)
}

func TestCanEnrollIgnoresClosedEnrollmentsInLoadCount(t *testing.T) {
	mixed := append(active("A101", "B101"), models.Enrollment{CourseCode: "Z101", State: models.EnrollmentStateCancelled})
	mixed = append(mixed, models.Enrollment{CourseCode: "Y101", State: models.EnrollmentStateCompleted})
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT101", 30, 0), mixed, nil)
	assert.True(t, decision.Allowed)
}

func TestCanEnrollPrerequisiteNotMet(t *testing.T) {
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT301", 30, 0), nil, nil)
	assert.Equal(t, ReasonPrerequisiteNotMet, decision.Reason)
}

func TestCanEnrollPrerequisiteMet(t *testing.T) {
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT301", 30, 0), nil, completed("MAT101"))
	assert.True(t, decision.Allowed)
}

func TestCanEnrollPrerequisiteWrongPrefix(t *testing.T) {
	decision := CanEnroll(student("ADMINISTRACION"), course("MAT301", 30, 0), nil, completed("FIS101"))
	assert.Equal(t, ReasonPrerequisiteNotMet, decision.Reason)
}

func TestCanEnrollProgramRestricted(t *testing.T) {
	decision := CanEnroll(student("MEDICINA"), course("ING201", 30, 0), nil, nil)
	assert.Equal(t, ReasonProgramRestricted, decision.Reason)

	decision = CanEnroll(student("MEDICINA"), course("MAT101", 30, 0), nil, nil)
	assert.True(t, decision.Allowed)
}

func TestCanEnrollRuleOrder(t *testing.T) {
	// A full ING course for a MEDICINA student reports NO_SEATS, not the
	// program restriction: seat capacity is evaluated first.
	decision := CanEnroll(student("MEDICINA"), course("ING301", 30, 30), nil, nil)
	assert.Equal(t, ReasonNoSeats, decision.Reason)

	// With seats free, the duplicate check precedes the load limit.
	six := active("ING301", "B101", "C101", "D101", "E101", "F101")
	decision = CanEnroll(student("MEDICINA"), course("ING301", 30, 0), six, nil)
	assert.Equal(t, ReasonAlreadyEnrolled, decision.Reason)
}

func TestCanEnrollIsPure(t *testing.T) {
	st := student("ADMINISTRACION")
	co := course("MAT101", 30, 29)
	first := CanEnroll(st, co, nil, nil)
	second := CanEnroll(st, co, nil, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, 29, co.OccupiedSeats, "evaluation must not mutate the snapshot")
}

func TestCanCancelWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	within := &models.Enrollment{State: models.EnrollmentStateActive, CreatedAt: now.AddDate(0, 0, -30)}
	decision := CanCancel(within, now)
	assert.True(t, decision.Allowed, "day 30 is still inside the window")

	expired := &models.Enrollment{State: models.EnrollmentStateActive, CreatedAt: now.AddDate(0, 0, -31)}
	decision = CanCancel(expired, now)
	assert.Equal(t, ReasonWindowExpired, decision.Reason)
}

func TestCanCancelNotActive(t *testing.T) {
	now := time.Now().UTC()
	for _, state := range []models.EnrollmentState{models.EnrollmentStateCancelled, models.EnrollmentStateCompleted} {
		e := &models.Enrollment{State: state, CreatedAt: now}
		decision := CanCancel(e, now)
		assert.Equal(t, ReasonNotActive, decision.Reason)
	}
}

func TestCanCancelNotActivePrecedesWindow(t *testing.T) {
	now := time.Now().UTC()
	e := &models.Enrollment{State: models.EnrollmentStateCancelled, CreatedAt: now.AddDate(0, 0, -60)}
	decision := CanCancel(e, now)
	assert.Equal(t, ReasonNotActive, decision.Reason)
}

func TestMeetsPrerequisites(t *testing.T) {
	assert.True(t, MeetsPrerequisites("MAT101", nil), "basic course needs nothing")
	assert.True(t, MeetsPrerequisites("MAT299", nil), "intermediate course needs nothing")
	assert.False(t, MeetsPrerequisites("MAT300", nil))
	assert.True(t, MeetsPrerequisites("MAT300", completed("MAT150")))
	assert.False(t, MeetsPrerequisites("MAT300", completed("MAT201")), "2xx does not satisfy")
	assert.True(t, MeetsPrerequisites("XYZ", nil), "unparseable codes pass")
}

func TestMeetsPrerequisitesIgnoresNonCompleted(t *testing.T) {
	activeOnly := []models.Enrollment{{CourseCode: "MAT101", State: models.EnrollmentStateActive}}
	assert.False(t, MeetsPrerequisites("MAT301", activeOnly))
}

func TestProgramAllowed(t *testing.T) {
	assert.False(t, ProgramAllowed("MEDICINA", "ING101"))
	assert.False(t, ProgramAllowed("medicina", "ing101"))
	assert.True(t, ProgramAllowed("MEDICINA", "MAT101"))
	assert.True(t, ProgramAllowed("INGENIERIA DE SISTEMAS", "ING101"))
}

func TestSplitCode(t *testing.T) {
	prefix, level, ok := SplitCode("MAT301")
	require.True(t, ok)
	assert.Equal(t, "MAT", prefix)
	assert.Equal(t, 301, level)

	prefix, level, ok = SplitCode("ing101")
	require.True(t, ok)
	assert.Equal(t, "ING", prefix)
	assert.Equal(t, 101, level)

	_, _, ok = SplitCode("301")
	assert.False(t, ok)
	_, _, ok = SplitCode("MAT")
	assert.False(t, ok)
	_, _, ok = SplitCode("MAT3A1")
	assert.False(t, ok)
	_, _, ok = SplitCode("")
	assert.False(t, ok)
}

func TestMessageCoversEveryReason(t *testing.T) {
	reasons := []ReasonCode{
		ReasonOK, ReasonNoSeats, ReasonAlreadyEnrolled, ReasonLoadLimitExceeded,
		ReasonPrerequisiteNotMet, ReasonProgramRestricted, ReasonNotActive, ReasonWindowExpired,
	}
	for _, reason := range reasons {
		assert.NotEmpty(t, Message(reason), string(reason))
	}
}
