package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/plandrop/plandrop/internal/domain"
)

// recipientRecord is the persisted shape of one registry entry. The JSON
// keys are the on-disk compatibility contract.
type recipientRecord struct {
	DisplayName string `json:"display_name"`
	FirstSeen   int64  `json:"first_seen"`
}

// FileRecipientDirectory implements domain.RecipientDirectory as a single
// JSON file keyed by identity. The registry is append-only: a recipient is
// recorded once on first contact and never updated or removed.
type FileRecipientDirectory struct {
	path string
	mu   sync.Mutex

	// Now is the clock used for first-seen timestamps; tests override it.
	Now func() time.Time
}

// NewFileRecipientDirectory creates the directory backed by the given file,
// initializing it to an empty registry when absent.
func NewFileRecipientDirectory(path string) (*FileRecipientDirectory, error) {
	d := &FileRecipientDirectory{path: path, Now: time.Now}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			return nil, fmt.Errorf("init recipient registry: %v: %w", err, domain.ErrStorageUnavailable)
		}
	}
	return d, nil
}

func (d *FileRecipientDirectory) load() (map[string]recipientRecord, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]recipientRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recipient registry: %v: %w", err, domain.ErrStorageUnavailable)
	}
	records := map[string]recipientRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode recipient registry: %v: %w", err, domain.ErrStorageUnavailable)
	}
	return records, nil
}

func (d *FileRecipientDirectory) save(records map[string]recipientRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode recipient registry: %w", err)
	}
	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		return fmt.Errorf("write recipient registry: %v: %w", err, domain.ErrStorageUnavailable)
	}
	return nil
}

// Register records a user on first contact; duplicates are a no-op.
func (d *FileRecipientDirectory) Register(ctx context.Context, id int64, displayName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(id, 10)
	if _, ok := records[key]; ok {
		return nil
	}
	records[key] = recipientRecord{
		DisplayName: displayName,
		FirstSeen:   d.Now().Unix(),
	}
	return d.save(records)
}

// Get returns one recipient record.
func (d *FileRecipientDirectory) Get(ctx context.Context, id int64) (domain.Recipient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load()
	if err != nil {
		return domain.Recipient{}, err
	}
	rec, ok := records[strconv.FormatInt(id, 10)]
	if !ok {
		return domain.Recipient{}, domain.ErrNotFound
	}
	return domain.Recipient{
		ID:          id,
		DisplayName: rec.DisplayName,
		FirstSeen:   time.Unix(rec.FirstSeen, 0),
	}, nil
}

// ListIdentities returns all registered identities in first-seen order,
// ties broken by identity for a stable fan-out order.
func (d *FileRecipientDirectory) ListIdentities(ctx context.Context) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load()
	if err != nil {
		return nil, err
	}

	type seen struct {
		id    int64
		first int64
	}
	all := make([]seen, 0, len(records))
	for key, rec := range records {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue // foreign key in the registry file, skip
		}
		all = append(all, seen{id: id, first: rec.FirstSeen})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].first != all[j].first {
			return all[i].first < all[j].first
		}
		return all[i].id < all[j].id
	})

	ids := make([]int64, len(all))
	for i, s := range all {
		ids[i] = s.id
	}
	return ids, nil
}

// Count returns the number of registered recipients.
func (d *FileRecipientDirectory) Count(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
