package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStudentNormalises(t *testing.T) {
	s, err := NewStudent(" est2024001 ", "ana MARIA", "torres", "ingenieria de sistemas", "Ana.Torres@Uni.edu", " 555-0101 ")
	require.NoError(t, err)
	assert.Equal(t, "EST2024001", s.Code)
	assert.Equal(t, "Ana Maria", s.FirstName)
	assert.Equal(t, "Torres", s.LastName)
	assert.Equal(t, "INGENIERIA DE SISTEMAS", s.Program)
	assert.Equal(t, "ana.torres@uni.edu", s.Email)
	assert.Equal(t, "555-0101", s.Phone)
	assert.Equal(t, "Ana Maria Torres", s.FullName())
}

func TestNewStudentValidation(t *testing.T) {
	cases := []struct {
		name                              string
		code, first, last, program, email string
	}{
		{"short code", "E1", "Ana", "Torres", "MEDICINA", ""},
		{"empty first name", "EST2024001", " ", "Torres", "MEDICINA", ""},
		{"empty last name", "EST2024001", "Ana", "", "MEDICINA", ""},
		{"empty program", "EST2024001", "Ana", "Torres", "", ""},
		{"bad email", "EST2024001", "Ana", "Torres", "MEDICINA", "not-an-email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStudent(tc.code, tc.first, tc.last, tc.program, tc.email, "")
			assert.Error(t, err)
		})
	}
}

func TestNewStudentEmailOptional(t *testing.T) {
	s, err := NewStudent("EST2024001", "Ana", "Torres", "MEDICINA", "", "")
	require.NoError(t, err)
	assert.Empty(t, s.Email)
}

func TestKnownProgram(t *testing.T) {
	assert.True(t, KnownProgram("MEDICINA"))
	assert.True(t, KnownProgram(" ingenieria de sistemas "))
	assert.False(t, KnownProgram("ASTROLOGIA"))
	assert.False(t, KnownProgram(""))
}
