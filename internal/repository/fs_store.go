package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/plandrop/plandrop/internal/domain"
)

const ledgerFilename = "metadata.json"

// FSContentStore implements domain.ContentStore on the local filesystem.
// Each category is a directory under the base dir holding the file bytes
// plus a metadata.json ledger. The ledger is persisted independently of the
// bytes so metadata can be rewritten without touching file content, and so
// the sweeper can reason about expiry without opening files.
type FSContentStore struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-category ledger lock

	// Now is the clock used for upload and expiry timestamps. Tests
	// override it; it defaults to time.Now.
	Now func() time.Time
}

// NewFSContentStore creates a content store rooted at baseDir, creating the
// directory if needed.
func NewFSContentStore(baseDir string) (*FSContentStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", domain.ErrStorageUnavailable)
	}
	return &FSContentStore{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		Now:     time.Now,
	}, nil
}

// categoryLock returns the mutex serializing ledger read-modify-write for
// one category. The ledger is the one resource mutated by two independent
// actors (upload flow and sweeper).
func (s *FSContentStore) categoryLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *FSContentStore) categoryDir(key string) string {
	return filepath.Join(s.baseDir, key)
}

func (s *FSContentStore) ledgerPath(key string) string {
	return filepath.Join(s.categoryDir(key), ledgerFilename)
}

// EnsureCategory idempotently creates the category directory and an empty
// ledger if absent.
func (s *FSContentStore) EnsureCategory(key string) error {
	if err := os.MkdirAll(s.categoryDir(key), 0o755); err != nil {
		return fmt.Errorf("ensure category %s: %w", key, domain.ErrStorageUnavailable)
	}
	path := s.ledgerPath(key)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			return fmt.Errorf("init ledger for %s: %w", key, domain.ErrStorageUnavailable)
		}
	}
	return nil
}

// loadLedger reads a category's ledger. A missing or unparseable ledger is
// treated as empty; only hard I/O errors surface.
func (s *FSContentStore) loadLedger(key string) (map[string]domain.LedgerEntry, error) {
	data, err := os.ReadFile(s.ledgerPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]domain.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %v: %w", key, err, domain.ErrStorageUnavailable)
	}
	ledger := map[string]domain.LedgerEntry{}
	if err := json.Unmarshal(data, &ledger); err != nil {
		// A corrupted ledger must not brick the category; entries are
		// rebuilt as uploads land.
		log.Printf("[ContentStore] corrupted ledger for %s, treating as empty: %v", key, err)
		return map[string]domain.LedgerEntry{}, nil
	}
	return ledger, nil
}

func (s *FSContentStore) saveLedger(key string, ledger map[string]domain.LedgerEntry) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", key, err)
	}
	if err := os.WriteFile(s.ledgerPath(key), data, 0o644); err != nil {
		return fmt.Errorf("write ledger %s: %v: %w", key, err, domain.ErrStorageUnavailable)
	}
	return nil
}

// Put writes file bytes and records the ledger entry. Last upload wins on a
// name collision.
func (s *FSContentStore) Put(ctx context.Context, category, filename string, src io.Reader, expiryDays int) (domain.StoredFile, error) {
	if err := s.EnsureCategory(category); err != nil {
		return domain.StoredFile{}, err
	}

	name := domain.SanitizeFilename(filename)
	if name == "" || name == ledgerFilename {
		// Nothing usable survived sanitization; fall back to an opaque id.
		name = strings.ToLower(ulid.Make().String())
	}

	lock := s.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(s.categoryDir(category), name)
	out, err := os.Create(path)
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("create %s/%s: %v: %w", category, name, err, domain.ErrStorageUnavailable)
	}
	size, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return domain.StoredFile{}, fmt.Errorf("write %s/%s: %v: %w", category, name, err, domain.ErrStorageUnavailable)
	}

	now := s.Now()
	entry := domain.LedgerEntry{UploadedAt: now.Unix()}
	if expiryDays > 0 {
		entry.ExpiryAt = now.Add(time.Duration(expiryDays) * 24 * time.Hour).Unix()
	}

	ledger, err := s.loadLedger(category)
	if err != nil {
		return domain.StoredFile{}, err
	}
	ledger[name] = entry
	if err := s.saveLedger(category, ledger); err != nil {
		return domain.StoredFile{}, err
	}

	f := domain.StoredFile{
		Category:   category,
		Name:       name,
		Size:       size,
		UploadedAt: now,
	}
	if entry.ExpiryAt != 0 {
		f.ExpiryAt = time.Unix(entry.ExpiryAt, 0)
	}
	return f, nil
}

// List returns the category's files most-recently-modified first. The
// listing is a snapshot taken at call time.
func (s *FSContentStore) List(category string) ([]domain.StoredFile, error) {
	if err := s.EnsureCategory(category); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.categoryDir(category))
	if err != nil {
		return nil, fmt.Errorf("list %s: %v: %w", category, err, domain.ErrStorageUnavailable)
	}

	lock := s.categoryLock(category)
	lock.Lock()
	ledger, err := s.loadLedger(category)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	type fileWithMtime struct {
		file  domain.StoredFile
		mtime time.Time
	}
	var files []fileWithMtime
	for _, e := range entries {
		if e.IsDir() || e.Name() == ledgerFilename {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // raced with a delete
		}
		f := domain.StoredFile{
			Category: category,
			Name:     e.Name(),
			Size:     info.Size(),
		}
		if meta, ok := ledger[e.Name()]; ok {
			f.UploadedAt = time.Unix(meta.UploadedAt, 0)
			if meta.ExpiryAt != 0 {
				f.ExpiryAt = time.Unix(meta.ExpiryAt, 0)
			}
		}
		files = append(files, fileWithMtime{file: f, mtime: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].mtime.After(files[j].mtime)
	})

	out := make([]domain.StoredFile, len(files))
	for i, f := range files {
		out[i] = f.file
	}
	return out, nil
}

// Get opens a stored file for reading.
func (s *FSContentStore) Get(ctx context.Context, category, name string) (io.ReadCloser, error) {
	// Names arrive from decoded tokens; anything that is not a plain
	// file name inside the category resolves to not-found.
	if name == "" || name == ledgerFilename || filepath.Base(name) != name {
		return nil, domain.ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.categoryDir(category), name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %v: %w", category, name, err, domain.ErrStorageUnavailable)
	}
	return f, nil
}

// Delete removes bytes and ledger entry. Idempotent: deleting an absent
// file is not an error.
func (s *FSContentStore) Delete(category, name string) error {
	lock := s.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(filepath.Join(s.categoryDir(category), name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %v: %w", category, name, err, domain.ErrStorageUnavailable)
	}

	ledger, err := s.loadLedger(category)
	if err != nil {
		return err
	}
	if _, ok := ledger[name]; !ok {
		return nil
	}
	delete(ledger, name)
	return s.saveLedger(category, ledger)
}

// Sweep runs one expiry cycle over a category under the category lock.
// Expired entries are deleted (archived first when archive is non-nil) and
// ledger entries whose file is gone are pruned as orphans. A failed file
// deletion is logged and the entry is still removed so a permanently
// undeletable file cannot block future sweeps. The ledger is persisted only
// when something changed.
func (s *FSContentStore) Sweep(ctx context.Context, category string, now time.Time, archive domain.ArchiveFunc) (domain.SweepReport, error) {
	lock := s.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	var report domain.SweepReport

	ledger, err := s.loadLedger(category)
	if err != nil {
		return report, err
	}

	for name, entry := range ledger {
		path := filepath.Join(s.categoryDir(category), name)

		if entry.ExpiryAt == 0 || now.Unix() < entry.ExpiryAt {
			// Not expired; prune the entry if the file vanished.
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				delete(ledger, name)
				report.Orphans++
			}
			continue
		}

		if archive != nil {
			if err := s.archiveFile(ctx, archive, category, name, path); err != nil {
				log.Printf("[ContentStore] archive failed for %s/%s: %v", category, name, err)
			} else {
				report.Archived++
			}
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[ContentStore] delete failed for %s/%s: %v", category, name, err)
			report.Failures++
		}
		delete(ledger, name)
		report.Deleted++
	}

	if report.Changed() {
		if err := s.saveLedger(category, ledger); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *FSContentStore) archiveFile(ctx context.Context, archive domain.ArchiveFunc, category, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return archive(ctx, category, name, f)
}
