// Package rules implements the enrollment decision engine. Every function in
// this package is pure: decisions are computed from the snapshot the caller
// supplies and rejection is data, never an error.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/campusops/enrollment-api/internal/models"
)

// ReasonCode identifies why a decision admitted or denied a request.
type ReasonCode string

// Reason codes surfaced to callers alongside the verdict.
const (
	ReasonOK                 ReasonCode = "OK"
	ReasonNoSeats            ReasonCode = "NO_SEATS"
	ReasonAlreadyEnrolled    ReasonCode = "ALREADY_ENROLLED"
	ReasonLoadLimitExceeded  ReasonCode = "LOAD_LIMIT_EXCEEDED"
	ReasonPrerequisiteNotMet ReasonCode = "PREREQUISITE_NOT_MET"
	ReasonProgramRestricted  ReasonCode = "PROGRAM_RESTRICTED"
	ReasonNotActive          ReasonCode = "NOT_ACTIVE"
	ReasonWindowExpired      ReasonCode = "WINDOW_EXPIRED"
)

const (
	// MaxActiveCourses caps the number of ACTIVE enrollments a student may hold.
	MaxActiveCourses = 6
	// CancelWindowDays is the inclusive number of elapsed days during which an
	// enrollment may still be cancelled.
	CancelWindowDays = 30
	// AdvancedLevel marks the course level from which prerequisites apply.
	AdvancedLevel = 300
	// BasicLevelMin/BasicLevelMax bound the 1xx courses that satisfy a
	// prerequisite for the same subject prefix.
	BasicLevelMin = 100
	BasicLevelMax = 199
	// RestrictedProgram students may not enroll in RestrictedPrefix courses.
	RestrictedProgram = "MEDICINA"
	RestrictedPrefix  = "ING"
)

var messages = map[ReasonCode]string{
	ReasonOK:                 "enrollment permitted",
	ReasonNoSeats:            "course has no available seats",
	ReasonAlreadyEnrolled:    "student is already enrolled in this course",
	ReasonLoadLimitExceeded:  fmt.Sprintf("student has reached the maximum of %d active courses", MaxActiveCourses),
	ReasonPrerequisiteNotMet: "student has not completed a prerequisite course for this subject",
	ReasonProgramRestricted:  "student's program does not permit enrollment in this course",
	ReasonNotActive:          "enrollment is not active",
	ReasonWindowExpired:      fmt.Sprintf("cancellation window of %d days has expired", CancelWindowDays),
}

// Decision is the evaluator's verdict: an admit/deny flag, the machine-readable
// reason and a precomputed human-readable message.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  ReasonCode `json:"reason"`
	Message string     `json:"message"`
}

func allow() Decision {
	return Decision{Allowed: true, Reason: ReasonOK, Message: messages[ReasonOK]}
}

func deny(reason ReasonCode) Decision {
	return Decision{Allowed: false, Reason: reason, Message: messages[reason]}
}

// Message returns the human-readable text for a reason code.
func Message(reason ReasonCode) string {
	return messages[reason]
}

// CanEnroll evaluates the enrollment rules in fixed order and returns the first
// failing rule's reason. active and completed are the student's enrollments in
// the respective states; the evaluator performs no I/O.
func CanEnroll(student *models.Student, course *models.Course, active, completed []models.Enrollment) Decision {
	if !course.HasAvailableSeats() {
		return deny(ReasonNoSeats)
	}

	activeCount := 0
	for _, e := range active {
		if !e.IsActive() {
			continue
		}
		if e.CourseCode == course.Code {
			return deny(ReasonAlreadyEnrolled)
		}
		activeCount++
	}
	if activeCount >= MaxActiveCourses {
		return deny(ReasonLoadLimitExceeded)
	}

	if !MeetsPrerequisites(course.Code, completed) {
		return deny(ReasonPrerequisiteNotMet)
	}

	if !ProgramAllowed(student.Program, course.Code) {
		return deny(ReasonProgramRestricted)
	}

	return allow()
}

// CanCancel evaluates the cancellation rules against the supplied clock.
func CanCancel(enrollment *models.Enrollment, now time.Time) Decision {
	if !enrollment.IsActive() {
		return deny(ReasonNotActive)
	}

	days := int(now.Sub(enrollment.CreatedAt).Hours() / 24)
	if days > CancelWindowDays {
		return deny(ReasonWindowExpired)
	}

	return allow()
}

// MeetsPrerequisites reports whether the prerequisite policy admits the course.
// Courses at level >= 300 require a COMPLETED 1xx course of the same subject
// prefix; everything else passes. The course-listing path reuses this predicate
// directly so list contents and enroll decisions cannot diverge.
func MeetsPrerequisites(courseCode string, completed []models.Enrollment) bool {
	prefix, level, ok := SplitCode(courseCode)
	if !ok || level < AdvancedLevel {
		return true
	}

	for _, e := range completed {
		if e.State != models.EnrollmentStateCompleted {
			continue
		}
		p, l, ok := SplitCode(e.CourseCode)
		if ok && p == prefix && l >= BasicLevelMin && l <= BasicLevelMax {
			return true
		}
	}
	return false
}

// ProgramAllowed reports whether the program/track policy admits the course.
// Students of the restricted program may not take restricted-prefix courses.
func ProgramAllowed(program, courseCode string) bool {
	if strings.EqualFold(strings.TrimSpace(program), RestrictedProgram) &&
		strings.HasPrefix(strings.ToUpper(courseCode), RestrictedPrefix) {
		return false
	}
	return true
}

// SplitCode splits a course code into its subject prefix and numeric level,
// e.g. "MAT301" -> ("MAT", 301). ok is false when the code does not follow the
// letters-then-digits convention.
func SplitCode(code string) (prefix string, level int, ok bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	i := 0
	for i < len(code) && code[i] >= 'A' && code[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(code) {
		return "", 0, false
	}
	for j := i; j < len(code); j++ {
		if code[j] < '0' || code[j] > '9' {
			return "", 0, false
		}
		level = level*10 + int(code[j]-'0')
	}
	return code[:i], level, true
}
