// Package filesystem contains the Content Catalog's filesystem adapter:
// a recursive, cancellable, bounded-concurrency scanner that turns files
// into content-addressed catalog entries.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/example/imagerank/internal/core/catalog"
	"github.com/example/imagerank/internal/ports/secondary"
)

// chunkSize is the fixed read buffer used while streaming a file into
// the digest hash, per spec.md §4.1's recommended 1 MiB chunking.
const chunkSize = 1 << 20

// Scanner implements secondary.CatalogScanner over the local filesystem.
type Scanner struct{}

// NewScanner creates a new filesystem CatalogScanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

type discovered struct {
	path    string
	size    int64
	modTime int64
}

// Scan walks root recursively, accepting supported image formats, and
// returns their digests. Results are merged in digest order (then path,
// for identical content at several paths) so repeated scans of identical
// inputs are deterministic. Cancellation is checked at each chunk
// boundary inside the hashing loop and between files, and a cancelled
// scan returns an error with no partial results.
func (s *Scanner) Scan(ctx context.Context, root string, cached map[string]secondary.CatalogEntry, maxFiles int, maxFileBytes int64, workers int) (secondary.ScanResult, error) {
	if _, err := os.Stat(root); err != nil {
		return secondary.ScanResult{}, fmt.Errorf("root directory not found: %w", err)
	}

	cachedByPath := make(map[string]secondary.CatalogEntry, len(cached))
	for _, e := range cached {
		cachedByPath[e.Path] = e
	}

	var candidates []discovered
	totalSeen := 0
	unreadable := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			unreadable++
			return nil // unreadable entry: skipped, counted in SkippedUnreadable
		}
		if d.IsDir() {
			return nil
		}
		totalSeen++
		if totalSeen > maxFiles {
			return fmt.Errorf("too many files: exceeded cap of %d", maxFiles)
		}
		if _, ok := catalog.FormatForExtension(path); !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			unreadable++
			return nil
		}
		candidates = append(candidates, discovered{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return secondary.ScanResult{}, err
	}

	result := secondary.ScanResult{TotalSeen: totalSeen, SkippedUnreadable: unreadable}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			file, ok, skipReason := processCandidate(gctx, c, maxFileBytes, cachedByPath)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case ok:
				result.Files = append(result.Files, file)
				result.Accepted++
			case skipReason == skipTooLarge:
				result.SkippedTooLarge++
			case skipReason == skipBadFormat:
				result.SkippedBadFormat++
			default:
				result.SkippedUnreadable++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return secondary.ScanResult{}, err
	}
	// A cancellation observed mid-hash is recorded per file as a skip;
	// surface it here so a cancelled scan never returns partial results.
	if err := ctx.Err(); err != nil {
		return secondary.ScanResult{}, err
	}

	sort.Slice(result.Files, func(i, j int) bool {
		if result.Files[i].Digest != result.Files[j].Digest {
			return result.Files[i].Digest < result.Files[j].Digest
		}
		return result.Files[i].Path < result.Files[j].Path
	})
	return result, nil
}

type skipKind int

const (
	skipNone skipKind = iota
	skipUnreadable
	skipBadFormat
	skipTooLarge
)

func processCandidate(ctx context.Context, c discovered, maxFileBytes int64, cachedByPath map[string]secondary.CatalogEntry) (secondary.ScannedFile, bool, skipKind) {
	if c.size > maxFileBytes {
		return secondary.ScannedFile{}, false, skipTooLarge
	}

	if cached, ok := cachedByPath[c.path]; ok && cached.Size == c.size && cached.ModTime == c.modTime {
		return secondary.ScannedFile{Digest: cached.Digest, Path: c.path, Size: c.size, ModTime: c.modTime}, true, skipNone
	}

	f, err := os.Open(c.path)
	if err != nil {
		return secondary.ScannedFile{}, false, skipUnreadable
	}
	defer f.Close()

	header := make([]byte, catalog.SniffLen())
	n, _ := io.ReadFull(f, header)
	header = header[:n]
	if !catalog.Accept(c.path, header) {
		return secondary.ScannedFile{}, false, skipBadFormat
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return secondary.ScannedFile{}, false, skipUnreadable
	}

	digest, err := streamDigest(ctx, f)
	if err != nil {
		return secondary.ScannedFile{}, false, skipUnreadable
	}

	return secondary.ScannedFile{Digest: digest, Path: c.path, Size: c.size, ModTime: c.modTime}, true, skipNone
}

// streamDigest hashes r in fixed chunks, checking for cancellation at
// each chunk boundary per spec.md §5.
func streamDigest(ctx context.Context, r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FetchImage returns the raw bytes and MIME type for a catalog entry's
// file, the byte-serving primitive the out-of-scope outer HTTP layer
// would call for fetch_image (§6).
func (s *Scanner) FetchImage(ctx context.Context, entry secondary.CatalogEntry) ([]byte, string, error) {
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %s: %w", entry.Digest, err)
	}

	header := data
	if len(header) > catalog.SniffLen() {
		header = header[:catalog.SniffLen()]
	}
	format, ok := catalog.SniffFormat(header)
	if !ok {
		return data, mimetype.Detect(data).String(), nil
	}
	return data, format.MIME(), nil
}
