// Package store provides the per-device embedded database for studysync.
//
// The store is a local SQLite database (ncruces/go-sqlite3) opened in WAL
// mode. It holds the four synchronized collections (performance results,
// study goals, achievements, and open questions) with owner-scoped
// secondary indexes and a versioned, idempotent schema migration.
//
// Every operation takes a context. A cancelled context fails the call with
// ErrAborted before or during the statement; single-statement writes mean a
// cancelled call never leaves a partial write behind.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	// ErrAborted is returned when an operation's context was cancelled
	// before or during execution.
	ErrAborted = errors.New("operation aborted")

	// ErrNotFound is returned by keyed lookups when no row matches.
	ErrNotFound = errors.New("record not found")
)

// MigrationError records a non-fatal schema-upgrade failure. A failed index
// build is logged and skipped so the unaffected collections stay usable.
type MigrationError struct {
	Step string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration step %q failed: %v", e.Step, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Store wraps the embedded SQLite connection.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Open creates a connection to the database at path, creating parent
// directories as needed. The database is opened in WAL mode with a busy
// timeout so a reader and the sync engine can overlap.
//
// The caller must Close() the store when done. If logger is nil, a default
// stderr logger is used.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path, logger: logger}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// schemaVersion is the current schema version written to PRAGMA user_version.
const schemaVersion = 1

// migration is one schema upgrade step. Table DDL must succeed; index DDL
// failures are logged and skipped so unaffected collections stay usable.
type migration struct {
	version int
	tables  string
	indexes []string
}

var migrations = []migration{
	{
		version: 1,
		tables: `
		CREATE TABLE IF NOT EXISTS performance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			chapter TEXT NOT NULL,
			score INTEGER NOT NULL,
			completed_at TEXT NOT NULL,
			assessment_type TEXT,
			difficulty TEXT
		);

		CREATE TABLE IF NOT EXISTS study_goals (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			text TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			due_at TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS achievements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			icon TEXT,
			points INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			chapter TEXT,
			concept TEXT NOT NULL,
			text TEXT NOT NULL,
			response TEXT,
			resolved INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		`,
		indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_performance_owner ON performance(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_study_goals_owner ON study_goals(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_achievements_owner ON achievements(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_questions_owner ON questions(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_questions_owner_concept ON questions(owner_id, concept)`,
		},
	},
}

// Migrate upgrades the schema to the current version. Steps are idempotent
// (IF NOT EXISTS) and existing data is never dropped. Table creation
// failures abort; index creation failures are logged as MigrationError and
// skipped; there is no global migration transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}

	var current int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		if _, err := s.conn.ExecContext(ctx, m.tables); err != nil {
			return wrapAbort(ctx, fmt.Errorf("failed to create tables for schema v%d: %w", m.version, err))
		}

		for _, idx := range m.indexes {
			if _, err := s.conn.ExecContext(ctx, idx); err != nil {
				merr := &MigrationError{Step: idx, Err: err}
				s.logger.Printf("Warning: %v", merr)
			}
		}

		if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return wrapAbort(ctx, fmt.Errorf("failed to record schema version %d: %w", m.version, err))
		}

		s.logger.Printf("Migrated schema to v%d", m.version)
	}

	return nil
}

// SchemaVersion reads the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, wrapAbort(ctx, fmt.Errorf("failed to read schema version: %w", err))
	}
	return v, nil
}

// wrapAbort maps context cancellation onto ErrAborted so callers can treat
// their own cancellation uniformly.
func wrapAbort(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	return err
}

// checkCtx rejects already-cancelled calls before touching the database.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	return nil
}

// timeToNullString converts an optional time to a nullable RFC 3339 string.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable RFC 3339 string back to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
