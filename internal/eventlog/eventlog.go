// Package eventlog keeps a SQLite history of lifecycle transitions, alerts
// and fan changes.
package eventlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Kind classifies an event.
type Kind string

const (
	KindLifecycle Kind = "LIFECYCLE"
	KindAlert     Kind = "ALERT"
	KindFan       Kind = "FAN"
	KindMode      Kind = "MODE"
)

// Event is one history entry.
type Event struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       Kind      `json:"kind"`
	Message    string    `json:"message"`
}

// Recorder appends events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

// fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    occurred_at TEXT NOT NULL,
    kind TEXT NOT NULL,
    message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_occurred_at ON events (occurred_at);
`

type row struct {
	ID         string `db:"id"`
	OccurredAt string `db:"occurred_at"`
	Kind       string `db:"kind"`
	Message    string `db:"message"`
}

// Store is the SQLite-backed event log.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return New(db, nil), nil
}

// New wraps an open database. now defaults to time.Now.
func New(db *sqlx.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}
}

// Record inserts e, filling in ID and OccurredAt when empty.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, occurred_at, kind, message) VALUES (?, ?, ?, ?)`,
		e.ID,
		e.OccurredAt.UTC().Format(timeLayout),
		strings.ToUpper(strings.TrimSpace(string(e.Kind))),
		e.Message,
	)
	if err != nil {
		return fmt.Errorf("record %s event: %w", e.Kind, err)
	}
	return nil
}

// List returns up to limit events, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, occurred_at, kind, message FROM events ORDER BY occurred_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		at, err := time.Parse(timeLayout, r.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("event %s: bad timestamp %q: %w", r.ID, r.OccurredAt, err)
		}
		out = append(out, Event{ID: r.ID, OccurredAt: at, Kind: Kind(r.Kind), Message: r.Message})
	}
	return out, nil
}

// Prune deletes events older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE occurred_at < ?`,
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
