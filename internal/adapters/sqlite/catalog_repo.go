package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/imagerank/internal/ports/secondary"
)

// CatalogRepository implements secondary.CatalogRepository with SQLite,
// persisting the Content Catalog's digest-to-path mapping across runs
// so unchanged files can skip rehashing on the next scan.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new SQLite catalog repository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) All(ctx context.Context) ([]secondary.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT digest, path, size, mtime FROM catalog_entries")
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer rows.Close()

	var out []secondary.CatalogEntry
	for rows.Next() {
		var e secondary.CatalogEntry
		if err := rows.Scan(&e.Digest, &e.Path, &e.Size, &e.ModTime); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) Upsert(ctx context.Context, entries []secondary.CatalogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_entries (digest, path, size, mtime) VALUES (?, ?, ?, ?)
			 ON CONFLICT(digest) DO UPDATE SET path = excluded.path, size = excluded.size, mtime = excluded.mtime`,
			e.Digest, e.Path, e.Size, e.ModTime)
		if err != nil {
			return fmt.Errorf("failed to upsert catalog entry %s: %w", e.Digest, err)
		}
	}

	return tx.Commit()
}

func (r *CatalogRepository) Lookup(ctx context.Context, digest string) (*secondary.CatalogEntry, error) {
	var e secondary.CatalogEntry
	err := r.db.QueryRowContext(ctx, "SELECT digest, path, size, mtime FROM catalog_entries WHERE digest = ?", digest).
		Scan(&e.Digest, &e.Path, &e.Size, &e.ModTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up catalog entry %s: %w", digest, err)
	}
	return &e, nil
}
