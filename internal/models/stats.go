package models

import (
	"math"
	"time"
)

// EnrollmentStats aggregates enrollment counts across all states.
type EnrollmentStats struct {
	Total              int            `json:"total"`
	Active             int            `json:"active"`
	Cancelled          int            `json:"cancelled"`
	Completed          int            `json:"completed"`
	StudentsWithActive int            `json:"students_with_active"`
	ActivePct          float64        `json:"active_pct"`
	CancelledPct       float64        `json:"cancelled_pct"`
	CompletedPct       float64        `json:"completed_pct"`
	ByProgram          map[string]int `json:"by_program"`
	ByCourse           map[string]int `json:"by_course"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// Percentage returns count/total as a percentage rounded to two decimals.
// A zero total yields 0, never a division error.
func Percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*100*100) / 100
}
