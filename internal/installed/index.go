package installed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/storage"
)

// Record is one indexed extension of the local repository.
type Record struct {
	extension.ID
	Type           string
	Name           string
	DescriptorPath string
	FilePath       string
	Valid          bool
	InvalidReason  string
	Dependencies   []ResolvedDependency
	IndexedAt      time.Time
}

// ResolvedDependency is a dependency and the version that satisfied it, if any.
type ResolvedDependency struct {
	ID         string
	Constraint string
	Resolved   string
}

// Index is the SQLite-backed installed extension index.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the index database at path.
func OpenIndex(ctx context.Context, path string) (*Index, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Replace swaps the whole index content for records in one transaction.
func (ix *Index) Replace(ctx context.Context, records []Record) (err error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM installed_extension;`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	for _, r := range records {
		valid := 0
		if r.Valid {
			valid = 1
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO installed_extension(id, version, type, name, descriptor_path, file_path, valid, invalid_reason, indexed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, r.ID.ID, r.Version, r.Type, r.Name, r.DescriptorPath, nullString(r.FilePath), valid, nullString(r.InvalidReason),
			r.IndexedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}

		for _, d := range r.Dependencies {
			_, err := tx.ExecContext(ctx, `
INSERT INTO installed_dependency(extension_id, extension_version, dependency_id, constraint_text, resolved_version)
VALUES(?, ?, ?, ?, ?);
`, r.ID.ID, r.Version, d.ID, d.Constraint, nullString(d.Resolved))
			if err != nil {
				return fmt.Errorf("insert dependency %s of %s: %w", d.ID, r.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// List returns every indexed extension ordered by id then insertion order of
// versions.
func (ix *Index) List(ctx context.Context) ([]Record, error) {
	rows, err := ix.db.QueryContext(ctx, `
SELECT id, version, type, COALESCE(name, ''), descriptor_path, COALESCE(file_path, ''),
       valid, COALESCE(invalid_reason, ''), indexed_at
FROM installed_extension
ORDER BY id ASC, rowid ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r         Record
			valid     int
			indexedAt string
		)
		if err := rows.Scan(&r.ID.ID, &r.Version, &r.Type, &r.Name, &r.DescriptorPath, &r.FilePath,
			&valid, &r.InvalidReason, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		r.Valid = valid == 1
		if t, err := time.Parse(time.RFC3339Nano, indexedAt); err == nil {
			r.IndexedAt = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index: %w", err)
	}
	rows.Close()

	for i := range out {
		deps, err := ix.dependencies(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Dependencies = deps
	}
	return out, nil
}

func (ix *Index) dependencies(ctx context.Context, id extension.ID) ([]ResolvedDependency, error) {
	rows, err := ix.db.QueryContext(ctx, `
SELECT dependency_id, constraint_text, COALESCE(resolved_version, '')
FROM installed_dependency
WHERE extension_id = ? AND extension_version = ?
ORDER BY rowid ASC;
`, id.ID, id.Version)
	if err != nil {
		return nil, fmt.Errorf("query dependencies of %s: %w", id, err)
	}
	defer rows.Close()

	var out []ResolvedDependency
	for rows.Next() {
		var d ResolvedDependency
		if err := rows.Scan(&d.ID, &d.Constraint, &d.Resolved); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
