package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/plandrop/plandrop/internal/domain"
)

// fakeTransport records outbound sends and can be told to fail for
// specific recipients.
type fakeTransport struct {
	mu       sync.Mutex
	texts    map[int64][]string
	media    map[int64][]string
	failFor  map[int64]bool
	attempts []int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		texts:   make(map[int64][]string),
		media:   make(map[int64][]string),
		failFor: make(map[int64]bool),
	}
}

func (t *fakeTransport) SendText(ctx context.Context, chatID int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts = append(t.attempts, chatID)
	if t.failFor[chatID] {
		return fmt.Errorf("%w: blocked", domain.ErrDeliveryFailed)
	}
	t.texts[chatID] = append(t.texts[chatID], text)
	return nil
}

func (t *fakeTransport) SendMedia(ctx context.Context, chatID int64, kind domain.MediaKind, ref, caption string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts = append(t.attempts, chatID)
	if t.failFor[chatID] {
		return fmt.Errorf("%w: blocked", domain.ErrDeliveryFailed)
	}
	t.media[chatID] = append(t.media[chatID], ref)
	return nil
}

func (t *fakeTransport) SendMenu(ctx context.Context, chatID int64, text string, kb domain.Keyboard) error {
	return t.SendText(ctx, chatID, text)
}

func (t *fakeTransport) EditMenu(ctx context.Context, chatID, messageID int64, text string, kb domain.Keyboard) error {
	return t.SendText(ctx, chatID, text)
}

func (t *fakeTransport) SendDocumentUpload(ctx context.Context, chatID int64, filename string, src io.Reader, caption string) error {
	return t.SendText(ctx, chatID, filename)
}

func (t *fakeTransport) AnswerCallback(ctx context.Context, callbackID string) error {
	return nil
}

// fakeDirectory serves a fixed identity list.
type fakeDirectory struct {
	ids []int64
	err error
}

func (d *fakeDirectory) Register(ctx context.Context, id int64, displayName string) error { return nil }

func (d *fakeDirectory) Get(ctx context.Context, id int64) (domain.Recipient, error) {
	return domain.Recipient{}, domain.ErrNotFound
}

func (d *fakeDirectory) ListIdentities(ctx context.Context) ([]int64, error) {
	return d.ids, d.err
}

func (d *fakeDirectory) Count(ctx context.Context) (int, error) { return len(d.ids), nil }

// storedPut records one Put call on the fake store.
type storedPut struct {
	category   string
	filename   string
	data       string
	expiryDays int
}

// fakeContentStore records Puts and serves canned sweep reports.
type fakeContentStore struct {
	mu   sync.Mutex
	puts []storedPut

	putErr       error
	sweepReports map[string]domain.SweepReport
	sweepErr     map[string]error
	sweepCalls   []string
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		sweepReports: make(map[string]domain.SweepReport),
		sweepErr:     make(map[string]error),
	}
}

func (s *fakeContentStore) EnsureCategory(key string) error { return nil }

func (s *fakeContentStore) Put(ctx context.Context, category, filename string, src io.Reader, expiryDays int) (domain.StoredFile, error) {
	if s.putErr != nil {
		return domain.StoredFile{}, s.putErr
	}
	data, _ := io.ReadAll(src)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, storedPut{category: category, filename: filename, data: string(data), expiryDays: expiryDays})
	return domain.StoredFile{Category: category, Name: filename, Size: int64(len(data))}, nil
}

func (s *fakeContentStore) List(category string) ([]domain.StoredFile, error) { return nil, nil }

func (s *fakeContentStore) Get(ctx context.Context, category, name string) (io.ReadCloser, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeContentStore) Delete(category, name string) error { return nil }

func (s *fakeContentStore) Sweep(ctx context.Context, category string, now time.Time, archive domain.ArchiveFunc) (domain.SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepCalls = append(s.sweepCalls, category)
	if err := s.sweepErr[category]; err != nil {
		return domain.SweepReport{}, err
	}
	return s.sweepReports[category], nil
}

// fakeFetcher serves canned bytes per media reference.
type fakeFetcher struct {
	files map[string]string
}

func (f *fakeFetcher) FetchBytes(ctx context.Context, ref string) (io.ReadCloser, error) {
	data, ok := f.files[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader([]byte(data))), nil
}
