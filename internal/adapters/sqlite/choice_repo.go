package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/imagerank/internal/core/rating"
	"github.com/example/imagerank/internal/ports/secondary"
)

// ChoiceRepository implements secondary.ChoiceRepository with SQLite.
// CommitChoice on ImageRepository is the normal write path; this
// repository serves the read side of the log (All, used by the
// reset-then-replay round-trip test, per spec.md §8), the log reset
// performed by SessionServiceImpl.Reset, and a standalone Append that
// no code path in this repository calls.
type ChoiceRepository struct {
	db *sql.DB
}

// NewChoiceRepository creates a new SQLite choice log repository.
func NewChoiceRepository(db *sql.DB) *ChoiceRepository {
	return &ChoiceRepository{db: db}
}

func (r *ChoiceRepository) Append(ctx context.Context, choice secondary.ChoiceRecord) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO choices
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
	return nil
}

func (r *ChoiceRepository) All(ctx context.Context) ([]secondary.ChoiceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT round, left_digest, right_digest, outcome,
		left_mu_before, left_mu_after, right_mu_before, right_mu_after,
		left_sigma_before, left_sigma_after, right_sigma_before, right_sigma_after, timestamp
		FROM choices ORDER BY round ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list choices: %w", err)
	}
	defer rows.Close()

	var out []secondary.ChoiceRecord
	for rows.Next() {
		var c secondary.ChoiceRecord
		var outcome string
		var ts time.Time
		if err := rows.Scan(&c.Round, &c.LeftDigest, &c.RightDigest, &outcome,
			&c.LeftMuBefore, &c.LeftMuAfter, &c.RightMuBefore, &c.RightMuAfter,
			&c.LeftSigmaBefore, &c.LeftSigmaAfter, &c.RightSigmaBefore, &c.RightSigmaAfter, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan choice row: %w", err)
		}
		c.Outcome = rating.Outcome(outcome)
		c.Timestamp = ts.UnixNano()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ChoiceRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM choices"); err != nil {
		return fmt.Errorf("failed to reset choices: %w", err)
	}
	return nil
}
