// Package sqlite provides the SQLite-backed tag index and annotation
// store. The database is used as an embedded key-value store with
// three logical tables: annotations (id -> serialized record),
// tag_to_ids (tag -> set of IDs), and id_to_tags (id -> set of tags).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gofrs/flock"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
	lock *flock.Flock

	// execHook, when set, runs before every statement and can fail
	// it. Tests use it to inject storage failures.
	execHook func(query string) error
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
// File-based databases take an advisory lock so a second marginalia
// process fails fast instead of interleaving writes; multi-process
// access is unsupported.
func (db *DB) Open() error {
	if db.path != ":memory:" {
		lock := flock.New(db.path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire database lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("database %q is in use by another marginalia process", db.path)
		}
		db.lock = lock
	}

	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		db.unlock()
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		db.unlock()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set busy timeout to wait 5 seconds before failing on lock contention.
	// This prevents immediate "database is locked" errors.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		db.unlock()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable WAL mode for file-based databases for better write performance.
	// Note: WAL mode is not supported for in-memory databases.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			db.unlock()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	db.db = conn

	// Create schema
	if err := db.createSchema(); err != nil {
		conn.Close()
		db.unlock()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection and releases the lock.
func (db *DB) Close() error {
	defer db.unlock()
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

func (db *DB) unlock() {
	if db.lock != nil {
		_ = db.lock.Unlock()
		db.lock = nil
	}
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if db.execHook != nil {
		if err := db.execHook(query); err != nil {
			return nil, err
		}
	}
	return db.db.ExecContext(ctx, query, args...)
}

// createSchema creates the database tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS annotations (
			id TEXT PRIMARY KEY,
			uri TEXT NOT NULL DEFAULT '',
			record BLOB NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			fetched_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tag_to_ids (
			tag TEXT PRIMARY KEY,
			ids BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS id_to_tags (
			id TEXT PRIMARY KEY,
			tags BLOB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_annotations_uri ON annotations(uri);
	`

	_, err := db.db.Exec(schema)
	return err
}
