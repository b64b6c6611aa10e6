package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomExists is returned when creating a room id that is taken.
	ErrRoomExists = errors.New("room already exists")
)

// Room is a directory entry for a drawing room. Canvas contents are never
// persisted; they live in memory for the room's lifetime.
type Room struct {
	ID         string
	Title      string
	CreatedBy  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	Joins      int64
}

// RoomStore keeps the room directory.
type RoomStore interface {
	CreateRoom(ctx context.Context, id, title, createdBy string) (*Room, error)
	GetRoom(ctx context.Context, id string) (*Room, error)
	ListRooms(ctx context.Context, limit int) ([]*Room, error)
	// TouchRoom records a join, creating the entry for ad-hoc rooms.
	TouchRoom(ctx context.Context, id string, at time.Time) error
}

// Store aggregates all persistence operations.
type Store interface {
	RoomStore
	Close() error
}
