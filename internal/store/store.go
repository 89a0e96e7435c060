package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on spans.parent_span_id for call-tree reads
const currentSchemaVersion = 1

// defaultBusyTimeoutMS bounds how long a contending process waits for the
// database lock before the operation fails.
const defaultBusyTimeoutMS = 5000

// Store provides durable storage for spans and events.
// Uses SQLite with WAL mode so gate reads proceed while a writer holds
// the exclusive transaction lock.
type Store struct {
	db *sql.DB
}

// Option configures Open.
type Option func(*settings)

type settings struct {
	busyTimeoutMS int
}

// WithBusyTimeout overrides the lock-contention wait, in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(s *settings) {
		if ms > 0 {
			s.busyTimeoutMS = ms
		}
	}
}

// Open creates or opens the SQLite database at the given path, creating
// parent directories as needed. Applies required pragmas and migrations
// automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - Bounded busy timeout for cross-process lock contention
//   - Foreign key enforcement
//   - Exclusive transaction locking (BEGIN EXCLUSIVE on every BeginTx)
//
// This function is idempotent - safe to call multiple times and from
// multiple processes.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := settings{busyTimeoutMS: defaultBusyTimeoutMS}
	for _, opt := range opts {
		opt(&cfg)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	// _txlock=exclusive makes every transaction a read-decide-write
	// critical section across processes, not just within this one.
	db, err := sql.Open("sqlite3", path+"?_txlock=exclusive")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db, cfg.busyTimeoutMS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
// Callers defer this so the handle is released on every exit path.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Tx wraps one exclusive transaction. All span mutations run through it so
// the read-decide-write sequence is serialized against other processes.
type Tx struct {
	tx *sql.Tx
}

// ExclusiveTx runs fn inside a single exclusive transaction: rolled back
// when fn returns an error, committed otherwise.
//
// fn must perform all reads and writes through the supplied Tx. Calling
// Store methods from inside fn deadlocks: the pool holds one connection
// and the transaction owns it.
func (s *Store) ExclusiveTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exclusive tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit exclusive tx: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, busyTimeoutMS int) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
// Migrations are additive only: new indexes or nullable columns, never
// destructive changes (the schema is shared by every deployed version).
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the parent index for databases created before v1.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_spans_parent
		ON spans(parent_span_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
