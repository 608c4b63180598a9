package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "calendd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is CRUD over event records plus the trigger-persistence surface used
// by the wake service. All operations surface underlying I/O failures to the
// caller unwrapped of any retry; callers may retry the whole user action.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Events ----

// Insert persists a new event and returns its assigned id.
func (s *Store) Insert(ctx context.Context, ev Event) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events(title, date, time, description, reminder) VALUES(?,?,?,?,?)`,
		ev.Title, ev.Date, ev.Time, ev.Description, ev.Reminder,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// Update replaces the record matching ev.ID. ErrNotFound when absent.
func (s *Store) Update(ctx context.Context, ev Event) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET title=?, date=?, time=?, description=?, reminder=? WHERE id=?`,
		ev.Title, ev.Date, ev.Time, ev.Description, ev.Reminder, ev.ID,
	)
	if err != nil {
		return fmt.Errorf("update event %d: %w", ev.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event %d: %w", ev.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes the record if present. Absent id is not an error.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	return nil
}

// GetByID returns the record, or (nil, nil) when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, date, time, description, reminder FROM events WHERE id=?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return &ev, nil
}

// ListByDate returns the events on the given date, ordered by time ascending.
// All-day events (empty time) sort first; lexical order on HH:MM suffices.
func (s *Store) ListByDate(ctx context.Context, date string) ([]Event, error) {
	return s.list(ctx,
		`SELECT id, title, date, time, description, reminder FROM events WHERE date=? ORDER BY time ASC`,
		date)
}

// ListAll returns every event ordered by (date, time) ascending.
func (s *Store) ListAll(ctx context.Context) ([]Event, error) {
	return s.list(ctx,
		`SELECT id, title, date, time, description, reminder FROM events ORDER BY date ASC, time ASC`)
}

// Search returns events whose title contains the substring, ordered by date.
// SQLite's LIKE is case-insensitive for ASCII, which matches the original
// app's behavior. An empty query matches every record.
func (s *Store) Search(ctx context.Context, query string) ([]Event, error) {
	return s.list(ctx,
		`SELECT id, title, date, time, description, reminder FROM events WHERE title LIKE '%' || ? || '%' ORDER BY date ASC`,
		query)
}

func (s *Store) list(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (Event, error) {
	var ev Event
	err := r.Scan(&ev.ID, &ev.Title, &ev.Date, &ev.Time, &ev.Description, &ev.Reminder)
	return ev, err
}

// ---- Triggers ----

// PutTrigger upserts the armed-trigger row for t.EventID.
func (s *Store) PutTrigger(ctx context.Context, t Trigger) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO triggers(event_id, fire_at, title, time) VALUES(?,?,?,?)
		 ON CONFLICT(event_id) DO UPDATE SET fire_at=excluded.fire_at, title=excluded.title, time=excluded.time`,
		t.EventID, t.FireAt.UnixMilli(), t.Title, t.Time,
	)
	if err != nil {
		return fmt.Errorf("put trigger %d: %w", t.EventID, err)
	}
	return nil
}

// DeleteTrigger removes the trigger row if present; idempotent.
func (s *Store) DeleteTrigger(ctx context.Context, eventID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM triggers WHERE event_id=?`, eventID)
	if err != nil {
		return fmt.Errorf("delete trigger %d: %w", eventID, err)
	}
	return nil
}

// ListTriggers returns every armed trigger, ordered by wake instant.
func (s *Store) ListTriggers(ctx context.Context) ([]Trigger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, fire_at, title, time FROM triggers ORDER BY fire_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var t Trigger
		var ms int64
		if err := rows.Scan(&t.EventID, &ms, &t.Title, &t.Time); err != nil {
			return nil, fmt.Errorf("list triggers: %w", err)
		}
		t.FireAt = time.UnixMilli(ms)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return out, nil
}
