package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"plantcam/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump on schema changes; the
// journal is advisory, so deleting the database is always a valid recovery.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// version of the schema.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Event kinds.
const (
	KindEncode  = "encode"
	KindFailure = "failure"
)

// Event is one journal row: a completed session encode or a notable failure.
type Event struct {
	ID         int64
	Kind       string
	SessionID  string
	StartedAt  time.Time
	FinishedAt time.Time
	FrameCount int
	Artifact   string
	Operation  string
	Detail     string
	CreatedAt  time.Time
}

// Store is the SQLite-backed history journal. The engine only ever writes to
// it; frame files on disk remain the source of truth for session state.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database in the state dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset the journal)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordEncode journals a completed session encode.
func (s *Store) RecordEncode(ctx context.Context, sessionID string, startedAt, finishedAt time.Time, frameCount int, artifact string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (kind, session_id, started_at, finished_at, frame_count, artifact, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		KindEncode, sessionID, formatTime(startedAt), formatTime(finishedAt), frameCount, artifact,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record encode: %w", err)
	}
	return nil
}

// RecordFailure journals a notable failure for the given operation.
func (s *Store) RecordFailure(ctx context.Context, operation, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (kind, operation, detail, created_at) VALUES (?, ?, ?, ?)`,
		KindFailure, operation, detail, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// Recent returns the newest events, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, session_id, started_at, finished_at, frame_count, artifact, operation, detail, created_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			event                            Event
			startedAt, finishedAt, createdAt string
		)
		if err := rows.Scan(&event.ID, &event.Kind, &event.SessionID, &startedAt, &finishedAt,
			&event.FrameCount, &event.Artifact, &event.Operation, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.StartedAt = parseTime(startedAt)
		event.FinishedAt = parseTime(finishedAt)
		event.CreatedAt = parseTime(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Prune deletes events older than the cutoff so the journal stays small on
// long-lived devices.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return result.RowsAffected()
}

func formatTime(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return at
}
