package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrAlreadyCheckedIn = errors.New("guest already checked in")
	ErrDuplicate        = errors.New("record already exists")
)

// Storage is the SQLite-backed store for events, guests, check-ins and users
type Storage struct {
	db  *sql.DB
	log zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	phone         TEXT NOT NULL UNIQUE,
	role          TEXT NOT NULL CHECK (role IN ('organizer', 'staff')),
	passcode_hash BLOB NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	role       TEXT NOT NULL,
	issued_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	revoked_at DATETIME
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL REFERENCES users(id),
	title       TEXT NOT NULL,
	type        TEXT NOT NULL CHECK (type IN ('wedding', 'birthday', 'graduation', 'corporate', 'other')),
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL,
	starts_at   DATETIME NOT NULL,
	guest_count INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL CHECK (status IN ('draft', 'active', 'completed', 'cancelled')),
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_owner ON events(owner_id);

CREATE TABLE IF NOT EXISTS event_staff (
	event_id TEXT NOT NULL REFERENCES events(id),
	user_id  TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY (event_id, user_id)
);

CREATE TABLE IF NOT EXISTS guests (
	id             TEXT PRIMARY KEY,
	event_id       TEXT NOT NULL REFERENCES events(id),
	name           TEXT NOT NULL,
	phone          TEXT NOT NULL,
	email          TEXT NOT NULL DEFAULT '',
	rsvp_status    TEXT NOT NULL DEFAULT 'pending' CHECK (rsvp_status IN ('pending', 'confirmed', 'declined')),
	invited_at     DATETIME NOT NULL,
	responded_at   DATETIME,
	companions     INTEGER NOT NULL DEFAULT 0,
	max_companions INTEGER NOT NULL DEFAULT 0,
	removed_at     DATETIME,
	CHECK (companions >= 0 AND companions <= max_companions)
);
CREATE INDEX IF NOT EXISTS idx_guests_event ON guests(event_id, invited_at);
CREATE INDEX IF NOT EXISTS idx_guests_phone ON guests(phone);

CREATE TABLE IF NOT EXISTS checkins (
	guest_id      TEXT NOT NULL UNIQUE REFERENCES guests(id),
	event_id      TEXT NOT NULL REFERENCES events(id),
	checked_in_at DATETIME NOT NULL,
	staff_id      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_checkins_event ON checkins(event_id);
`

// NewStorage opens the database behind dsn and makes sure the schema exists
func NewStorage(ctx context.Context, dsn string, log zerolog.Logger) (*Storage, error) {
	if path := filePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", withDefaultParams(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one connection serializes every transaction
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Storage{db: db, log: log}, nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

func withDefaultParams(dsn string) string {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000"}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var missing []string
	for _, p := range params {
		key := p[:strings.Index(p, "=")]
		if !strings.Contains(dsn, key+"=") {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	return dsn + sep + strings.Join(missing, "&")
}

func filePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	return path
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
