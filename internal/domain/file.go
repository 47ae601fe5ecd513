package domain

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode"
)

// StoredFile is a single distributable file inside a category.
type StoredFile struct {
	Category   string
	Name       string
	Size       int64
	UploadedAt time.Time
	ExpiryAt   time.Time // zero value means the file never expires
}

// Expired reports whether the file's expiry is set and at or before now.
func (f StoredFile) Expired(now time.Time) bool {
	return !f.ExpiryAt.IsZero() && !now.Before(f.ExpiryAt)
}

// LedgerEntry is the persisted metadata record for one file. The JSON shape
// is the on-disk compatibility contract: epoch seconds, expiry zero when the
// file never expires.
type LedgerEntry struct {
	UploadedAt int64 `json:"uploaded_at"`
	ExpiryAt   int64 `json:"expiry_at"`
}

// SweepReport summarizes one sweep cycle over a single category.
type SweepReport struct {
	Deleted  int // ledger entries removed because expiry passed
	Archived int // expired files copied to the archive before deletion
	Orphans  int // ledger entries removed because the file was gone
	Failures int // file deletions that failed (entry still removed)
}

// Changed reports whether the cycle modified the ledger.
func (r SweepReport) Changed() bool {
	return r.Deleted > 0 || r.Orphans > 0
}

// ArchiveFunc receives an expired file's bytes before it is deleted.
// Implementations are best-effort: an error is logged by the caller and
// never blocks deletion.
type ArchiveFunc func(ctx context.Context, category, name string, r io.Reader) error

// ContentStore defines the categorized file store with its per-category
// metadata ledger. Implementations must keep ledger writes serialized per
// category (read-modify-write under a lock).
type ContentStore interface {
	// EnsureCategory idempotently creates the category's storage location
	// and an empty ledger if absent.
	EnsureCategory(key string) error

	// Put writes file bytes and records a ledger entry. The filename is
	// sanitized; an empty sanitized name falls back to an opaque identifier.
	// A name collision silently overwrites: last upload wins.
	// expiryDays <= 0 means the file never expires.
	Put(ctx context.Context, category, filename string, src io.Reader, expiryDays int) (StoredFile, error)

	// List returns the category's files most-recently-modified first,
	// snapshotted at call time.
	List(category string) ([]StoredFile, error)

	// Get opens a stored file for reading. Returns ErrNotFound when the
	// file or category is absent.
	Get(ctx context.Context, category, name string) (io.ReadCloser, error)

	// Delete removes bytes and ledger entry. Deleting an absent file is
	// not an error.
	Delete(category, name string) error

	// Sweep runs one expiry cycle over a category: expired entries are
	// deleted (archived first when archive is non-nil), ledger entries
	// whose file is missing are pruned, and the ledger is persisted only
	// when something changed.
	Sweep(ctx context.Context, category string, now time.Time, archive ArchiveFunc) (SweepReport, error)
}

// SanitizeFilename reduces a filename to the allowed character set: unicode
// letters and digits plus dot, underscore, hyphen and space. Disallowed
// characters are dropped, not substituted. The result may be empty; callers
// must then fall back to an opaque identifier.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._- ", r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
