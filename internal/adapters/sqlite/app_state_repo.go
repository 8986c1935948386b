package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/imagerank/internal/core/convergence"
	"github.com/example/imagerank/internal/ports/secondary"
)

// AppStateRepository implements secondary.AppStateRepository with
// SQLite, serializing the three ring buffers as JSON text columns.
type AppStateRepository struct {
	db *sql.DB
}

// NewAppStateRepository creates a new SQLite AppState repository.
func NewAppStateRepository(db *sql.DB) *AppStateRepository {
	return &AppStateRepository{db: db}
}

func (r *AppStateRepository) Get(ctx context.Context) (secondary.AppStateRecord, error) {
	var rec secondary.AppStateRecord
	var recentImagesJSON, recentPairsJSON, topKJSON string

	err := r.db.QueryRowContext(ctx,
		"SELECT current_round, recent_images, recent_pairs, top_k_history FROM app_state WHERE id = 1").
		Scan(&rec.CurrentRound, &recentImagesJSON, &recentPairsJSON, &topKJSON)
	if err != nil {
		return secondary.AppStateRecord{}, fmt.Errorf("failed to read app_state: %w", err)
	}

	if err := json.Unmarshal([]byte(recentImagesJSON), &rec.RecentImages); err != nil {
		return secondary.AppStateRecord{}, fmt.Errorf("failed to decode recent_images: %w", err)
	}
	if err := json.Unmarshal([]byte(recentPairsJSON), &rec.RecentPairs); err != nil {
		return secondary.AppStateRecord{}, fmt.Errorf("failed to decode recent_pairs: %w", err)
	}
	var history []convergence.Snapshot
	if err := json.Unmarshal([]byte(topKJSON), &history); err != nil {
		return secondary.AppStateRecord{}, fmt.Errorf("failed to decode top_k_history: %w", err)
	}
	rec.TopKHistory = history

	return rec, nil
}

func (r *AppStateRepository) Save(ctx context.Context, state secondary.AppStateRecord) error {
	recentImagesJSON, err := json.Marshal(state.RecentImages)
	if err != nil {
		return fmt.Errorf("failed to encode recent_images: %w", err)
	}
	recentPairsJSON, err := json.Marshal(state.RecentPairs)
	if err != nil {
		return fmt.Errorf("failed to encode recent_pairs: %w", err)
	}
	topKJSON, err := json.Marshal(state.TopKHistory)
	if err != nil {
		return fmt.Errorf("failed to encode top_k_history: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE app_state SET current_round = ?, recent_images = ?, recent_pairs = ?, top_k_history = ? WHERE id = 1`,
		state.CurrentRound, string(recentImagesJSON), string(recentPairsJSON), string(topKJSON))
	if err != nil {
		return fmt.Errorf("failed to save app_state: %w", err)
	}
	return nil
}

func (r *AppStateRepository) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE app_state SET current_round = 0, recent_images = '[]', recent_pairs = '[]', top_k_history = '[]' WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to reset app_state: %w", err)
	}
	return nil
}
