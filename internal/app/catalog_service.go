// Package app wires the primary-port services (CatalogService,
// SessionService) to the pure core packages and the secondary-port
// repositories/scanner — the hexagonal "application" layer.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/example/imagerank/internal/core/catalog"
	"github.com/example/imagerank/internal/ports/primary"
	"github.com/example/imagerank/internal/ports/secondary"
)

// CatalogServiceImpl drives catalog scans and registers newly-observed
// digests with the Rating Store, implementing primary.CatalogService.
type CatalogServiceImpl struct {
	catalogRepo secondary.CatalogRepository
	imageRepo   secondary.ImageRepository
	scanner     secondary.CatalogScanner
	maxFiles    int
	maxBytes    int64
	workers     int

	mu   sync.RWMutex
	root string
	set  bool
}

// NewCatalogService creates a CatalogServiceImpl with the given
// repositories, scanner, and catalog guard limits (§6).
func NewCatalogService(catalogRepo secondary.CatalogRepository, imageRepo secondary.ImageRepository, scanner secondary.CatalogScanner, maxFiles int, maxBytes int64, workers int) *CatalogServiceImpl {
	return &CatalogServiceImpl{
		catalogRepo: catalogRepo,
		imageRepo:   imageRepo,
		scanner:     scanner,
		maxFiles:    maxFiles,
		maxBytes:    maxBytes,
		workers:     workers,
	}
}

// CurrentRoot implements app.RootProvider for SessionServiceImpl's
// NoDirectorySet check.
func (c *CatalogServiceImpl) CurrentRoot() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root, c.set
}

// SetRoot scans root, upserts the catalog's digest-to-path mapping, and
// registers every newly-observed digest with the Rating Store at its
// initial posterior.
func (c *CatalogServiceImpl) SetRoot(ctx context.Context, root string) (primary.SetRootResponse, error) {
	existing, err := c.catalogRepo.All(ctx)
	if err != nil {
		return primary.SetRootResponse{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to load existing catalog: %v", err))
	}
	cached := make(map[string]secondary.CatalogEntry, len(existing))
	for _, e := range existing {
		cached[e.Digest] = e
	}

	result, err := c.scanner.Scan(ctx, root, cached, c.maxFiles, c.maxBytes, c.workers)
	if err != nil {
		if strings.Contains(err.Error(), "too many files") {
			return primary.SetRootResponse{}, primary.NewCoreError(primary.ErrResourceLimit, primary.TagTooManyFiles, err.Error())
		}
		return primary.SetRootResponse{}, primary.NewCoreError(primary.ErrNotReady, primary.TagDirectoryNotFound, err.Error())
	}

	byDigest := make(map[string]secondary.CatalogEntry, len(result.Files))
	for _, f := range result.Files {
		byDigest[f.Digest] = secondary.CatalogEntry{Digest: f.Digest, Path: f.Path, Size: f.Size, ModTime: f.ModTime}
	}

	entries := make([]secondary.CatalogEntry, 0, len(byDigest))
	for _, e := range byDigest {
		entries = append(entries, e)
	}
	if err := c.catalogRepo.Upsert(ctx, entries); err != nil {
		return primary.SetRootResponse{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to persist catalog: %v", err))
	}

	for digest := range byDigest {
		if err := c.imageRepo.EnsureCreated(ctx, digest); err != nil {
			return primary.SetRootResponse{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to register digest %s: %v", digest, err))
		}
	}

	c.mu.Lock()
	c.root, c.set = root, true
	c.mu.Unlock()

	return primary.SetRootResponse{ImageCount: len(byDigest)}, nil
}

// FetchImage returns the raw bytes and MIME type for a known digest.
func (c *CatalogServiceImpl) FetchImage(ctx context.Context, digest string) ([]byte, string, error) {
	if !catalog.ValidDigest(digest) {
		return nil, "", primary.NewCoreError(primary.ErrInputInvalid, primary.TagUnknownDigest, "malformed digest")
	}

	entry, err := c.catalogRepo.Lookup(ctx, digest)
	if err != nil {
		return nil, "", primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("catalog lookup failed: %v", err))
	}
	if entry == nil {
		return nil, "", primary.NewCoreError(primary.ErrInputInvalid, primary.TagUnknownDigest, "digest not present in catalog")
	}

	data, mimeType, err := c.scanner.FetchImage(ctx, *entry)
	if err != nil {
		return nil, "", primary.NewCoreError(primary.ErrConflict, primary.TagFileMissing, err.Error())
	}
	return data, mimeType, nil
}
