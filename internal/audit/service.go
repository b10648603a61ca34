package audit

import (
	"context"
	"log"
	"time"

	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/metrics"
	"github.com/telegis/platform/internal/shared/types"
)

// DefaultMaxEntries caps the trail unless configured otherwise.
const DefaultMaxEntries = 10000

// recentStatsLimit bounds the Recent slice in Stats.
const recentStatsLimit = 50

// Store is the persistence contract for the audit trail. Entries are
// stored newest-first.
type Store interface {
	// Insert appends an entry
	Insert(ctx context.Context, e *Entry) error

	// List returns matching entries, newest first
	List(ctx context.Context, f Filter) ([]Entry, error)

	// Count returns the total number of entries
	Count(ctx context.Context) (int, error)

	// EvictOldest removes the n oldest entries by insertion order
	EvictOldest(ctx context.Context, n int) (int, error)
}

// Trail is the append-only, size-bounded audit log every other component
// writes to.
type Trail struct {
	store Store
	now   func() time.Time
	max   int
}

// Option configures a Trail
type Option func(*Trail)

// WithClock overrides the time source (useful for tests)
func WithClock(fn func() time.Time) Option {
	return func(t *Trail) {
		if fn != nil {
			t.now = fn
		}
	}
}

// WithMaxEntries overrides the trail size cap
func WithMaxEntries(max int) Option {
	return func(t *Trail) {
		if max > 0 {
			t.max = max
		}
	}
}

// NewTrail creates an audit trail over the given store
func NewTrail(store Store, opts ...Option) *Trail {
	t := &Trail{
		store: store,
		now:   time.Now,
		max:   DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends the entry to the trail and returns it. Record never fails
// the caller: a persistence failure here must not block the mutation that
// triggered it, so it is logged and swallowed.
func (t *Trail) Record(ctx context.Context, e *Entry) *Entry {
	if e.ID.IsZero() {
		e.ID = types.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now().UTC()
	}

	if err := t.store.Insert(ctx, e); err != nil {
		log.Printf("audit: failed to record entry %s (%s): %v", e.ID, e.EventType, err)
		return e
	}
	metrics.RecordAuditEntry()

	t.enforceCap(ctx)
	return e
}

// enforceCap evicts oldest entries once the trail exceeds the cap. Strict
// FIFO by insertion order; eviction failures are logged and swallowed like
// any other audit persistence failure.
func (t *Trail) enforceCap(ctx context.Context) {
	count, err := t.store.Count(ctx)
	if err != nil {
		log.Printf("audit: failed to count entries: %v", err)
		return
	}
	if count <= t.max {
		return
	}
	evicted, err := t.store.EvictOldest(ctx, count-t.max)
	if err != nil {
		log.Printf("audit: failed to evict %d entries: %v", count-t.max, err)
		return
	}
	metrics.RecordAuditEviction(evicted)
}

// Query returns entries matching the filter, newest first.
func (t *Trail) Query(ctx context.Context, f Filter) ([]Entry, error) {
	entries, err := t.store.List(ctx, f)
	if err != nil {
		return nil, errors.Storage(err, "failed to query audit trail")
	}
	return entries, nil
}

// Stats summarizes the entries matching the filter: counts by type, region
// and user, success/failure totals, and the most recent entries.
func (t *Trail) Stats(ctx context.Context, f Filter) (Stats, error) {
	f.Limit = 0
	entries, err := t.store.List(ctx, f)
	if err != nil {
		return Stats{}, errors.Storage(err, "failed to compute audit stats")
	}

	stats := Stats{
		Total:    len(entries),
		ByType:   make(map[string]int),
		ByRegion: make(map[string]int),
		ByUser:   make(map[string]int),
	}
	for i := range entries {
		e := &entries[i]
		stats.ByType[string(e.EventType)]++
		if e.Region != "" {
			stats.ByRegion[e.Region]++
		}
		stats.ByUser[e.UserID.String()]++
		if e.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
	}

	recent := entries
	if len(recent) > recentStatsLimit {
		recent = recent[:recentStatsLimit]
	}
	stats.Recent = append([]Entry(nil), recent...)
	return stats, nil
}

// MaxEntries returns the configured cap.
func (t *Trail) MaxEntries() int {
	return t.max
}
