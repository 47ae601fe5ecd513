package service

import (
	"context"
	"log"
	"time"

	"github.com/plandrop/plandrop/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Sweeper is the background expiry garbage collector. It runs on a fixed
// interval independent of request traffic and tolerates being started
// multiple times: each cycle only acts on the expired entries present at
// that moment.
type Sweeper struct {
	store      domain.ContentStore
	categories []domain.Category
	interval   time.Duration
	archive    domain.ArchiveFunc // nil when no archiver is configured

	// Now is the clock expiry is judged against; tests override it.
	Now func() time.Time

	sweptCounter metric.Int64Counter
}

// NewSweeper creates a sweeper over the configured category enumeration.
func NewSweeper(store domain.ContentStore, categories []domain.Category, interval time.Duration, archive domain.ArchiveFunc) *Sweeper {
	meter := otel.Meter("plandrop/sweeper")
	swept, _ := meter.Int64Counter("sweeper.files.deleted")
	return &Sweeper{
		store:        store,
		categories:   categories,
		interval:     interval,
		archive:      archive,
		Now:          time.Now,
		sweptCounter: swept,
	}
}

// Run executes sweep cycles until the context is cancelled. The first cycle
// runs immediately.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Printf("[Sweeper] starting, interval=%s categories=%d", s.interval, len(s.categories))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Sweeper] shutting down")
			return nil
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle sweeps every category once. Errors are isolated per category: a
// failure on one ledger never blocks sweeping the others.
func (s *Sweeper) RunCycle(ctx context.Context) domain.SweepReport {
	start := time.Now()
	now := s.Now()

	var total domain.SweepReport
	for _, cat := range s.categories {
		report, err := s.store.Sweep(ctx, cat.Key, now, s.archive)
		if err != nil {
			log.Printf("[Sweeper] category %s failed: %v", cat.Key, err)
			continue
		}
		total.Deleted += report.Deleted
		total.Archived += report.Archived
		total.Orphans += report.Orphans
		total.Failures += report.Failures
	}

	if s.sweptCounter != nil && total.Deleted > 0 {
		s.sweptCounter.Add(ctx, int64(total.Deleted))
	}
	if total.Changed() || total.Failures > 0 {
		log.Printf("[Sweeper] cycle done, deleted=%d archived=%d orphans=%d failures=%d duration=%s",
			total.Deleted, total.Archived, total.Orphans, total.Failures, time.Since(start))
	}
	return total
}
