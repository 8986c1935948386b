// Package sqlite contains SQLite implementations of the image rating
// core's secondary ports: image posteriors, the choice log, AppState,
// and the catalog's digest-to-path mapping.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/imagerank/internal/core/rating"
	"github.com/example/imagerank/internal/ports/secondary"
)

// ImageRepository implements secondary.ImageRepository with SQLite.
type ImageRepository struct {
	db      *sql.DB
	retries int
}

// NewImageRepository creates a new SQLite image repository. retries
// bounds the exponential-backoff retry loop CommitChoice applies to
// transient lock conflicts, per spec.md §7's propagation policy.
func NewImageRepository(db *sql.DB, retries int) *ImageRepository {
	if retries < 1 {
		retries = 1
	}
	return &ImageRepository{db: db, retries: retries}
}

const imageSelectCols = "digest, mu, sigma, exposures, likes, unlikes, skips, last_seen_round, next_eligible_round, created_at"

func scanImage(scanner interface{ Scan(dest ...any) error }) (rating.Record, error) {
	var r rating.Record
	var createdAt time.Time
	err := scanner.Scan(&r.Digest, &r.Mu, &r.Sigma, &r.Exposures, &r.Likes, &r.Unlikes, &r.Skips,
		&r.LastSeenRound, &r.NextEligibleRound, &createdAt)
	if err != nil {
		return rating.Record{}, err
	}
	r.CreatedAt = createdAt
	return r, nil
}

// Get returns the record for digest, or (nil, nil) if absent.
func (r *ImageRepository) Get(ctx context.Context, digest string) (*rating.Record, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+imageSelectCols+" FROM images WHERE digest = ?", digest)
	rec, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image %s: %w", digest, err)
	}
	return &rec, nil
}

// All returns every persisted image record.
func (r *ImageRepository) All(ctx context.Context) ([]rating.Record, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+imageSelectCols+" FROM images")
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var out []rating.Record
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EnsureCreated inserts the initial posterior for digest if absent.
func (r *ImageRepository) EnsureCreated(ctx context.Context, digest string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO images (digest, mu, sigma, created_at) VALUES (?, 1500, 350, ?)",
		digest, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to ensure image %s: %w", digest, err)
	}
	return nil
}

// CommitChoice atomically persists both images' updated posteriors, the
// Choice record, and the round bump behind a single transaction,
// retrying transient lock conflicts with exponential backoff.
func (r *ImageRepository) CommitChoice(ctx context.Context, choice secondary.ChoiceRecord, left, right rating.Record) error {
	var lastErr error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt < r.retries; attempt++ {
		if err := r.commitChoiceOnce(ctx, choice, left, right); err != nil {
			if !isTransient(err) {
				return err
			}
			lastErr = err
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		return nil
	}
	return fmt.Errorf("record_choice: transient conflict after %d attempts: %w", r.retries, lastErr)
}

func (r *ImageRepository) commitChoiceOnce(ctx context.Context, choice secondary.ChoiceRecord, left, right rating.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentRound int
	if err := tx.QueryRowContext(ctx, "SELECT current_round FROM app_state WHERE id = 1").Scan(&currentRound); err != nil {
		return fmt.Errorf("failed to read current round: %w", err)
	}
	if currentRound != choice.Round {
		return fmt.Errorf("expected round %d, got %d: %w", currentRound, choice.Round, secondary.ErrStaleRound)
	}

	if err := upsertImage(ctx, tx, left); err != nil {
		return err
	}
	if err := upsertImage(ctx, tx, right); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO choices
		(round, left_digest, right_digest, outcome,
		 left_mu_before, left_mu_after, right_mu_before, right_mu_after,
		 left_sigma_before, left_sigma_after, right_sigma_before, right_sigma_after, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		choice.Round, choice.LeftDigest, choice.RightDigest, string(choice.Outcome),
		choice.LeftMuBefore, choice.LeftMuAfter, choice.RightMuBefore, choice.RightMuAfter,
		choice.LeftSigmaBefore, choice.LeftSigmaAfter, choice.RightSigmaBefore, choice.RightSigmaAfter,
		time.Unix(0, choice.Timestamp).UTC())
	if err != nil {
		return fmt.Errorf("failed to append choice: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE app_state SET current_round = current_round + 1 WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to bump round: %w", err)
	}

	return tx.Commit()
}

func upsertImage(ctx context.Context, tx *sql.Tx, rec rating.Record) error {
	_, err := tx.ExecContext(ctx, `UPDATE images SET
		mu = ?, sigma = ?, exposures = ?, likes = ?, unlikes = ?, skips = ?,
		last_seen_round = ?, next_eligible_round = ?
		WHERE digest = ?`,
		rec.Mu, rec.Sigma, rec.Exposures, rec.Likes, rec.Unlikes, rec.Skips,
		rec.LastSeenRound, rec.NextEligibleRound, rec.Digest)
	if err != nil {
		return fmt.Errorf("failed to update image %s: %w", rec.Digest, err)
	}
	return nil
}

// Reset clears all image posteriors.
func (r *ImageRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM images"); err != nil {
		return fmt.Errorf("failed to reset images: %w", err)
	}
	return nil
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, secondary.ErrStaleRound) {
		return false
	}
	return sqliteBusy(err)
}

// sqliteBusy is a best-effort classifier for SQLITE_BUSY/SQLITE_LOCKED
// conditions surfaced through database/sql's generic error strings;
// mattn/go-sqlite3 does not always expose a typed error across cgo
// boundaries under all build tags.
func sqliteBusy(err error) bool {
	msg := err.Error()
	return contains(msg, "database is locked") || contains(msg, "busy")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
