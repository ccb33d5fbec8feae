package models

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// EnrollmentState represents the lifecycle of an enrollment.
type EnrollmentState string

// Possible enrollment states. ACTIVE is the only state that consumes a seat;
// CANCELLED and COMPLETED are terminal.
const (
	EnrollmentStateActive    EnrollmentState = "ACTIVE"
	EnrollmentStateCancelled EnrollmentState = "CANCELLED"
	EnrollmentStateCompleted EnrollmentState = "COMPLETED"
)

// Enrollment links a student to a course.
type Enrollment struct {
	ID          string          `db:"id" json:"id"`
	StudentCode string          `db:"student_code" json:"student_code"`
	CourseCode  string          `db:"course_code" json:"course_code"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ClosedAt    *time.Time      `db:"closed_at" json:"closed_at,omitempty"`
	State       EnrollmentState `db:"state" json:"state"`
}

// NewEnrollment validates the pair codes and produces an ACTIVE enrollment.
func NewEnrollment(studentCode, courseCode string) (*Enrollment, error) {
	studentCode = strings.TrimSpace(studentCode)
	if studentCode == "" {
		return nil, appErrors.Field("student_code", "must not be empty")
	}
	courseCode = strings.TrimSpace(courseCode)
	if courseCode == "" {
		return nil, appErrors.Field("course_code", "must not be empty")
	}

	return &Enrollment{
		StudentCode: strings.ToUpper(studentCode),
		CourseCode:  strings.ToUpper(courseCode),
		CreatedAt:   time.Now().UTC(),
		State:       EnrollmentStateActive,
	}, nil
}

// IsActive reports whether the enrollment currently consumes a seat.
func (e *Enrollment) IsActive() bool {
	return e.State == EnrollmentStateActive
}

// InvalidTransitionError reports an illegal state-machine transition.
type InvalidTransitionError struct {
	From EnrollmentState
	To   EnrollmentState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid enrollment transition from %s to %s", e.From, e.To)
}

// transitions is the exhaustive table of legal state changes. Terminal states
// have no outgoing edges.
var transitions = map[EnrollmentState]map[EnrollmentState]bool{
	EnrollmentStateActive: {
		EnrollmentStateCancelled: true,
		EnrollmentStateCompleted: true,
	},
	EnrollmentStateCancelled: {},
	EnrollmentStateCompleted: {},
}

// Transition returns the target state when the (from, to) pair is legal and an
// *InvalidTransitionError otherwise.
func Transition(from, to EnrollmentState) (EnrollmentState, error) {
	if transitions[from][to] {
		return to, nil
	}
	return from, &InvalidTransitionError{From: from, To: to}
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	Program     string `db:"program" json:"program"`
	CourseName  string `db:"course_name" json:"course_name"`
	Credits     int    `db:"credits" json:"credits"`
	Instructor  string `db:"instructor" json:"instructor,omitempty"`
	Schedule    string `db:"schedule" json:"schedule,omitempty"`
}

// RosterEntry is one student row of a course roster.
type RosterEntry struct {
	StudentCode string    `db:"student_code" json:"student_code"`
	StudentName string    `db:"student_name" json:"student_name"`
	Program     string    `db:"program" json:"program"`
	Email       string    `db:"email" json:"email,omitempty"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolled_at"`
}
