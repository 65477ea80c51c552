package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private, process-local database.
const MemoryPath = ":memory:"

// DB wraps a SQLite database connection holding the score index.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates a SQLite database at the given path.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// migrate runs database migrations up to the current schema version.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version < 1 {
		if err := db.migrateV1(ctx); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1 creates the score index schema.
func (db *DB) migrateV1(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY,
			path TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS archive_entries (
			id INTEGER PRIMARY KEY,
			source_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_archive_entries_source_id ON archive_entries(source_id);
		CREATE INDEX IF NOT EXISTS idx_archive_entries_name ON archive_entries(name);

		CREATE TABLE IF NOT EXISTS targets (
			id INTEGER PRIMARY KEY,
			path TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS target_paths (
			target_id INTEGER NOT NULL,
			rel_path TEXT NOT NULL,
			PRIMARY KEY (target_id, rel_path),
			FOREIGN KEY(target_id) REFERENCES targets(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_target_paths_rel_path ON target_paths(rel_path);

		INSERT INTO schema_version (version) VALUES (1);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute v1 migration: %w", err)
	}

	return nil
}
