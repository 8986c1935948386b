// Package secondary defines the secondary ports (driven adapters) for the
// image rating core: the interfaces through which the Session Coordinator
// and Catalog service drive persistence and the filesystem.
package secondary

import (
	"context"
	"errors"

	"github.com/example/imagerank/internal/core/convergence"
	"github.com/example/imagerank/internal/core/rating"
)

// ErrStaleRound is returned by ImageRepository.CommitChoice when the
// choice's round no longer matches AppState's current_round — the
// transactional check that keeps record_choice's StaleRound rejection
// atomic with the round bump itself, per spec.md §4.5/§7.
var ErrStaleRound = errors.New("stale round")

// ImageRepository is the secondary port for the Rating Store's
// per-image posterior persistence.
type ImageRepository interface {
	// Get returns the record for digest, or (nil, nil) if absent.
	Get(ctx context.Context, digest string) (*rating.Record, error)

	// All returns every persisted image record.
	All(ctx context.Context) ([]rating.Record, error)

	// EnsureCreated inserts a fresh rating.NewRecord for digest if one
	// does not already exist. It is a no-op for a digest already known.
	EnsureCreated(ctx context.Context, digest string) error

	// CommitChoice atomically persists the updated posteriors for both
	// images in a pair plus the Choice record, and bumps AppState's
	// current_round by exactly one. Implementations retry transient
	// lock conflicts with backoff before surfacing an error.
	CommitChoice(ctx context.Context, choice ChoiceRecord, left, right rating.Record) error

	// Reset clears all image posteriors (but not catalog entries).
	Reset(ctx context.Context) error
}

// ChoiceRecord mirrors the append-only Choice log row defined in
// spec.md §3: a full audit snapshot of one committed decision.
type ChoiceRecord struct {
	Round            int
	LeftDigest       string
	RightDigest      string
	Outcome          rating.Outcome
	Timestamp        int64 // unix nanoseconds
	LeftMuBefore     float64
	LeftMuAfter      float64
	RightMuBefore    float64
	RightMuAfter     float64
	LeftSigmaBefore  float64
	LeftSigmaAfter   float64
	RightSigmaBefore float64
	RightSigmaAfter  float64
}

// ChoiceRepository is the secondary port for the append-only Choice log.
type ChoiceRepository interface {
	Append(ctx context.Context, choice ChoiceRecord) error
	All(ctx context.Context) ([]ChoiceRecord, error)
	Reset(ctx context.Context) error
}

// AppStateRecord mirrors the AppState singleton: the round counter and
// the three bounded ring buffers.
type AppStateRecord struct {
	CurrentRound int
	RecentImages []string
	RecentPairs  [][2]string
	TopKHistory  []convergence.Snapshot
}

// AppStateRepository is the secondary port for the AppState singleton.
type AppStateRepository interface {
	Get(ctx context.Context) (AppStateRecord, error)
	Save(ctx context.Context, state AppStateRecord) error
	Reset(ctx context.Context) error
}

// CatalogEntry is a persisted digest-to-path mapping, per spec.md §3's
// Catalog entry.
type CatalogEntry struct {
	Digest  string
	Path    string
	Size    int64
	ModTime int64
}

// CatalogRepository is the secondary port for the digest-to-path
// mapping the Content Catalog maintains across scans.
type CatalogRepository interface {
	All(ctx context.Context) ([]CatalogEntry, error)
	Upsert(ctx context.Context, entries []CatalogEntry) error
	Lookup(ctx context.Context, digest string) (*CatalogEntry, error)
}
