package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wiredraw-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the SQLite database at dbPath and applies migrations.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Tests pass Migrate with ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRoom registers a new room id.
func (s *SQLiteStore) CreateRoom(ctx context.Context, id, title, createdBy string) (*store.Room, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO rooms (id, title, created_by, created_at, last_seen_at, joins)
		VALUES (?, ?, ?, ?, ?, 0)
	`
	if _, err := s.db.ExecContext(ctx, query, id, title, createdBy, now, now); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, store.ErrRoomExists
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, title, created_by, created_at, last_seen_at, joins
		FROM rooms
		WHERE id = ?
	`
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// ListRooms returns the most recently active rooms first.
func (s *SQLiteStore) ListRooms(ctx context.Context, limit int) ([]*store.Room, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, title, created_by, created_at, last_seen_at, joins
		FROM rooms
		ORDER BY last_seen_at DESC, id ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// TouchRoom bumps the join counter and last activity of a room.
func (s *SQLiteStore) TouchRoom(ctx context.Context, id string, at time.Time) error {
	query := `
		INSERT INTO rooms (id, created_at, last_seen_at, joins)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			joins = rooms.joins + 1
	`
	at = at.UTC()
	if _, err := s.db.ExecContext(ctx, query, id, at, at); err != nil {
		return fmt.Errorf("touch room: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*store.Room, error) {
	var room store.Room
	if err := row.Scan(&room.ID, &room.Title, &room.CreatedBy, &room.CreatedAt, &room.LastSeenAt, &room.Joins); err != nil {
		return nil, err
	}
	return &room, nil
}
