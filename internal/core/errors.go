package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound      = "room_not_found"
	ErrCodeAlreadyJoined     = "already_joined"
	ErrCodeNotInRoom         = "not_in_room"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeGuideActive       = "guide_active"
	ErrCodeGuideInactive     = "guide_inactive"
	ErrCodeGuideUnavailable  = "guide_unavailable"
	ErrCodeNoDrawableContent = "no_drawable_content"
	ErrCodeInvalidReference  = "invalid_reference"
	ErrCodeMergeFailed       = "merge_failed"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyJoined = errors.New("already joined")
	ErrNotInRoom     = errors.New("not in room")
	ErrBadRequest    = errors.New("bad request")
	ErrSlowConsumer  = errors.New("client too slow to keep up")

	// ErrNoDrawableContent is returned by reference resolvers when a reference
	// has no usable shape groups.
	ErrNoDrawableContent = errors.New("no drawable content")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
