// Package catalog contains the pure, I/O-free logic for turning files into
// content-addressed catalog entries: digest validation, format sniffing, and
// the Entry/ScanStats value types. The filesystem scanner reports through
// the secondary port's CatalogEntry/ScanResult types, not through these.
package catalog

import "regexp"

// digestHexPattern matches a 256-bit digest encoded as 64 lowercase hex
// characters, per the catalog's sole cross-component identifier format.
var digestHexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidDigest reports whether s is a well-formed digest: 64 lowercase hex
// characters. It does not check that the digest is present in any catalog.
func ValidDigest(s string) bool {
	return digestHexPattern.MatchString(s)
}

// Entry is a catalog's record of one accepted file: where it lives, how big
// it is, and when it was last modified. The digest that keys an Entry is not
// stored on the struct itself — callers hold entries in a map keyed by
// digest, matching the "digest is the sole identifier" rule; path is an
// implementation detail the core never leaks to callers.
type Entry struct {
	Path    string
	Size    int64
	ModTime int64 // unix nanoseconds, comparable without importing time here
}

// Matches reports whether a freshly-stat'd file still matches this entry's
// cached (path, size, mtime) triple — the cheap check that decides whether
// a cached digest can be reused without rehashing. The filesystem scanner
// performs the same comparison inline on secondary.CatalogEntry.
func (e Entry) Matches(path string, size int64, modTime int64) bool {
	return e.Path == path && e.Size == size && e.ModTime == modTime
}

// ScanStats summarizes one catalog scan: how many files were seen,
// accepted, and skipped (and why). It has no field for an aborted scan.
type ScanStats struct {
	Accepted          int
	SkippedUnreadable int
	SkippedBadFormat  int
	SkippedTooLarge   int
	TotalSeen         int
}
