package utils

import (
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// MaxRoomIDBytes bounds the length of a room identifier.
const MaxRoomIDBytes = 256

// NewClientID returns a unique identifier for a websocket connection.
func NewClientID() string {
	return uuid.NewString()
}

// NewRoomID returns a sortable room identifier safe for use in links.
func NewRoomID() string {
	return ksuid.New().String()
}

// ValidRoomID reports whether id may be used as a room identifier. Ids are
// opaque: any non-empty UTF-8 text without control characters is accepted,
// including Telegram chat ids such as "-100123" and free-form board names.
func ValidRoomID(id string) bool {
	if id == "" || len(id) > MaxRoomIDBytes || !utf8.ValidString(id) {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
