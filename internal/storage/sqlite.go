package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// IndexFileName is the installed index inside <permanent>/extension.
const IndexFileName = "installed.db"

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := RequireLocal(UseIndex, path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates the installed index tables if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS installed_extension (
  id              TEXT NOT NULL,
  version         TEXT NOT NULL,
  type            TEXT NOT NULL,
  name            TEXT,
  descriptor_path TEXT NOT NULL,
  file_path       TEXT,
  valid           INTEGER NOT NULL DEFAULT 1,
  invalid_reason  TEXT,
  indexed_at      TEXT NOT NULL,
  PRIMARY KEY (id, version)
);`,
		`CREATE TABLE IF NOT EXISTS installed_dependency (
  extension_id      TEXT NOT NULL,
  extension_version TEXT NOT NULL,
  dependency_id     TEXT NOT NULL,
  constraint_text   TEXT NOT NULL DEFAULT '',
  resolved_version  TEXT,
  FOREIGN KEY (extension_id, extension_version)
    REFERENCES installed_extension(id, version) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS installed_extension_valid_idx ON installed_extension(valid, id);`,
		`CREATE INDEX IF NOT EXISTS installed_dependency_owner_idx ON installed_dependency(extension_id, extension_version);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
