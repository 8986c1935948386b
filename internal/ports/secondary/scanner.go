package secondary

import "context"

// ScannedFile is one file the scanner accepted during a walk, with its
// freshly-computed or cache-reused digest.
type ScannedFile struct {
	Digest  string
	Path    string
	Size    int64
	ModTime int64
}

// ScanResult summarizes one catalog scan.
type ScanResult struct {
	Files             []ScannedFile
	Accepted          int
	SkippedUnreadable int
	SkippedBadFormat  int
	SkippedTooLarge   int
	TotalSeen         int
}

// CatalogScanner is the secondary port for turning a root directory into
// content-addressed catalog entries. Implementations must be
// cancellable at chunk boundaries and must not leak partial state when
// the file-count cap is exceeded.
type CatalogScanner interface {
	// Scan walks root recursively, accepting supported image formats up
	// to maxFileBytes each, and returns their digests. cached supplies
	// previously-known (path,size,mtime)->digest entries so unchanged
	// files skip rehashing. Returns an error without partial results if
	// the discovered file count exceeds maxFiles.
	Scan(ctx context.Context, root string, cached map[string]CatalogEntry, maxFiles int, maxFileBytes int64, workers int) (ScanResult, error)

	// FetchImage returns the raw bytes and MIME type for digest's file.
	FetchImage(ctx context.Context, entry CatalogEntry) ([]byte, string, error)
}
