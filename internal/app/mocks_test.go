package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/imagerank/internal/core/rating"
	"github.com/example/imagerank/internal/ports/secondary"
)

type mockImageRepository struct {
	mu      sync.Mutex
	records map[string]rating.Record
	round   int

	getErr    error
	commitErr error
}

func newMockImageRepository() *mockImageRepository {
	return &mockImageRepository{records: make(map[string]rating.Record)}
}

func (m *mockImageRepository) Get(ctx context.Context, digest string) (*rating.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[digest]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockImageRepository) All(ctx context.Context) ([]rating.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rating.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockImageRepository) EnsureCreated(ctx context.Context, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[digest]; !ok {
		m.records[digest] = rating.NewRecord(digest, time.Now())
	}
	return nil
}

func (m *mockImageRepository) CommitChoice(ctx context.Context, choice secondary.ChoiceRecord, left, right rating.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	if choice.Round != m.round {
		return fmt.Errorf("expected round %d, got %d: %w", m.round, choice.Round, secondary.ErrStaleRound)
	}
	m.records[left.Digest] = left
	m.records[right.Digest] = right
	m.round++
	return nil
}

func (m *mockImageRepository) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]rating.Record)
	m.round = 0
	return nil
}

type mockChoiceRepository struct {
	mu      sync.Mutex
	choices []secondary.ChoiceRecord
}

func newMockChoiceRepository() *mockChoiceRepository {
	return &mockChoiceRepository{}
}

func (m *mockChoiceRepository) Append(ctx context.Context, choice secondary.ChoiceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.choices = append(m.choices, choice)
	return nil
}

func (m *mockChoiceRepository) All(ctx context.Context) ([]secondary.ChoiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]secondary.ChoiceRecord{}, m.choices...), nil
}

func (m *mockChoiceRepository) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.choices = nil
	return nil
}

type mockAppStateRepository struct {
	mu    sync.Mutex
	state secondary.AppStateRecord
}

func newMockAppStateRepository() *mockAppStateRepository {
	return &mockAppStateRepository{}
}

func (m *mockAppStateRepository) Get(ctx context.Context) (secondary.AppStateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *mockAppStateRepository) Save(ctx context.Context, state secondary.AppStateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

func (m *mockAppStateRepository) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = secondary.AppStateRecord{}
	return nil
}

type mockCatalogRepository struct {
	mu      sync.Mutex
	entries map[string]secondary.CatalogEntry
}

func newMockCatalogRepository() *mockCatalogRepository {
	return &mockCatalogRepository{entries: make(map[string]secondary.CatalogEntry)}
}

func (m *mockCatalogRepository) All(ctx context.Context) ([]secondary.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]secondary.CatalogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockCatalogRepository) Upsert(ctx context.Context, entries []secondary.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.Digest] = e
	}
	return nil
}

func (m *mockCatalogRepository) Lookup(ctx context.Context, digest string) (*secondary.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[digest]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

type mockScanner struct {
	result secondary.ScanResult
	err    error

	fetchData []byte
	fetchMIME string
	fetchErr  error
}

func (m *mockScanner) Scan(ctx context.Context, root string, cached map[string]secondary.CatalogEntry, maxFiles int, maxFileBytes int64, workers int) (secondary.ScanResult, error) {
	if m.err != nil {
		return secondary.ScanResult{}, m.err
	}
	return m.result, nil
}

func (m *mockScanner) FetchImage(ctx context.Context, entry secondary.CatalogEntry) ([]byte, string, error) {
	if m.fetchErr != nil {
		return nil, "", m.fetchErr
	}
	return m.fetchData, m.fetchMIME, nil
}

type fixedRootProvider struct {
	root string
	set  bool
}

func (f fixedRootProvider) CurrentRoot() (string, bool) { return f.root, f.set }
