package models

import (
	"strings"
	"time"

	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// Credit-hour bounds for a course.
const (
	MinCredits = 1
	MaxCredits = 6
)

// Course represents an academic course with a fixed seat capacity.
type Course struct {
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	Credits       int       `db:"credits" json:"credits"`
	Instructor    string    `db:"instructor" json:"instructor,omitempty"`
	Schedule      string    `db:"schedule" json:"schedule,omitempty"`
	TotalSeats    int       `db:"total_seats" json:"total_seats"`
	OccupiedSeats int       `db:"occupied_seats" json:"occupied_seats"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// NewCourse validates and normalises the fields before producing a Course.
func NewCourse(code, name string, credits int, instructor, schedule string, totalSeats int) (*Course, error) {
	code = strings.TrimSpace(code)
	if len(code) < 3 {
		return nil, appErrors.Field("code", "must be at least 3 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Field("name", "must not be empty")
	}
	if credits < MinCredits || credits > MaxCredits {
		return nil, appErrors.Field("credits", "must be between 1 and 6")
	}
	if totalSeats <= 0 {
		return nil, appErrors.Field("total_seats", "must be positive")
	}

	return &Course{
		Code:       strings.ToUpper(code),
		Name:       titleCase(name),
		Credits:    credits,
		Instructor: strings.TrimSpace(instructor),
		Schedule:   strings.TrimSpace(schedule),
		TotalSeats: totalSeats,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// AvailableSeats returns the remaining capacity of the course.
func (c *Course) AvailableSeats() int {
	return c.TotalSeats - c.OccupiedSeats
}

// HasAvailableSeats reports whether at least one seat is free.
func (c *Course) HasAvailableSeats() bool {
	return c.AvailableSeats() > 0
}

// Summary projects the course into its listing representation.
func (c *Course) Summary() CourseSummary {
	return CourseSummary{
		Code:           c.Code,
		Name:           c.Name,
		Credits:        c.Credits,
		Instructor:     c.Instructor,
		Schedule:       c.Schedule,
		AvailableSeats: c.AvailableSeats(),
	}
}

// CourseSummary is the read model returned by course listings.
type CourseSummary struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Credits        int    `json:"credits"`
	Instructor     string `json:"instructor,omitempty"`
	Schedule       string `json:"schedule,omitempty"`
	AvailableSeats int    `json:"available_seats"`
}

// CourseFilter encapsulates allowed search parameters for listing courses.
type CourseFilter struct {
	Search        string
	AvailableOnly bool
	Page          int
	PageSize      int
}
