package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRoomIDIsValid(t *testing.T) {
	a, b := NewRoomID(), NewRoomID()
	assert.True(t, ValidRoomID(a))
	assert.NotEqual(t, a, b)
}

func TestValidRoomID(t *testing.T) {
	for id, want := range map[string]bool{
		"-1001234567":            true,
		"family_chat":            true,
		"a b":                    true,
		`New Board "My Board"`:   true,
		"Доска для рисования":    true,
		"":                       false,
		"line\nbreak":            false,
		"tab\there":              false,
		"\xff\xfe":               false,
		strings.Repeat("x", 257): false,
	} {
		assert.Equal(t, want, ValidRoomID(id), id)
	}
}

func TestNewClientIDUnique(t *testing.T) {
	assert.NotEqual(t, NewClientID(), NewClientID())
}
