package models

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	appErrors "github.com/campusops/enrollment-api/pkg/errors"
)

// Programs the institution currently offers. Registration accepts values outside
// this catalog, but callers are expected to flag them as suspicious.
var programCatalog = map[string]struct{}{
	"INGENIERIA DE SISTEMAS": {},
	"INGENIERIA INDUSTRIAL":  {},
	"ADMINISTRACION":         {},
	"CONTADURIA":             {},
	"DERECHO":                {},
	"MEDICINA":               {},
	"PSICOLOGIA":             {},
	"ARQUITECTURA":           {},
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// KnownProgram reports whether the program belongs to the fixed catalog.
func KnownProgram(program string) bool {
	_, ok := programCatalog[strings.ToUpper(strings.TrimSpace(program))]
	return ok
}

// Student represents a learner registered in the institution.
type Student struct {
	Code      string    `db:"code" json:"code"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Program   string    `db:"program" json:"program"`
	Email     string    `db:"email" json:"email,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewStudent validates and normalises the fields before producing a Student.
// Codes are uppercased, names title-cased and the email lowercased.
func NewStudent(code, firstName, lastName, program, email, phone string) (*Student, error) {
	code = strings.TrimSpace(code)
	if len(code) < 5 {
		return nil, appErrors.Field("code", "must be at least 5 characters")
	}
	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		return nil, appErrors.Field("first_name", "must not be empty")
	}
	lastName = strings.TrimSpace(lastName)
	if lastName == "" {
		return nil, appErrors.Field("last_name", "must not be empty")
	}
	program = strings.TrimSpace(program)
	if program == "" {
		return nil, appErrors.Field("program", "must not be empty")
	}
	email = strings.TrimSpace(email)
	if email != "" && !emailPattern.MatchString(email) {
		return nil, appErrors.Field("email", "invalid format")
	}

	return &Student{
		Code:      strings.ToUpper(code),
		FirstName: titleCase(firstName),
		LastName:  titleCase(lastName),
		Program:   strings.ToUpper(program),
		Email:     strings.ToLower(email),
		Phone:     strings.TrimSpace(phone),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// FullName returns the display name of the student.
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Program  string
	Page     int
	PageSize int
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
