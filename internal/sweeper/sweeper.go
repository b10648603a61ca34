// Package sweeper runs the periodic maintenance loop: it lapses expired
// grants and notifies connected sessions whose effective region set has
// changed as a result.
package sweeper

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/telegis/platform/internal/shared/events"
	"github.com/telegis/platform/internal/shared/types"
)

// GrantSweeper is the slice of the grant service the loop drives.
type GrantSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// RegionResolver recomputes a user's effective regions.
type RegionResolver interface {
	EffectiveRegions(ctx context.Context, userID types.ID, t time.Time) ([]string, error)
}

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = 30 * time.Second

// Sweeper owns the maintenance ticker. Sessions register the users whose
// effective regions should be watched; when a sweep changes a watched
// user's region set, a regions-changed event is published so the console
// can refresh without polling.
type Sweeper struct {
	grants   GrantSweeper
	resolver RegionResolver
	bus      events.EventBus
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	watched map[types.ID][]string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithInterval overrides the sweep period
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source (useful for tests)
func WithClock(fn func() time.Time) Option {
	return func(s *Sweeper) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithBus enables regions-changed event publication
func WithBus(bus events.EventBus) Option {
	return func(s *Sweeper) {
		s.bus = bus
	}
}

// New creates a sweeper
func New(grants GrantSweeper, resolver RegionResolver, opts ...Option) *Sweeper {
	s := &Sweeper{
		grants:   grants,
		resolver: resolver,
		interval: DefaultInterval,
		now:      time.Now,
		watched:  make(map[types.ID][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch registers a user session. The current region snapshot is taken
// immediately so the first tick does not report a spurious change.
func (s *Sweeper) Watch(ctx context.Context, userID types.ID) error {
	regions, err := s.resolver.EffectiveRegions(ctx, userID, s.now().UTC())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched[userID] = regions
	return nil
}

// Unwatch removes a user session
func (s *Sweeper) Unwatch(userID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watched, userID)
}

// Start launches the ticker loop. It returns immediately; call Stop to
// shut the loop down and wait for the in-flight tick to finish.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

// Tick performs one maintenance pass. It is idempotent: with no clock
// movement between calls a second pass sweeps nothing and reports no
// region changes.
func (s *Sweeper) Tick(ctx context.Context) {
	count, err := s.grants.SweepExpired(ctx)
	if err != nil {
		log.Printf("sweeper: sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("sweeper: lapsed %d expired grants", count)
	}
	s.refreshWatched(ctx)
}

func (s *Sweeper) refreshWatched(ctx context.Context) {
	s.mu.Lock()
	ids := make([]types.ID, 0, len(s.watched))
	for id := range s.watched {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	now := s.now().UTC()
	for _, id := range ids {
		regions, err := s.resolver.EffectiveRegions(ctx, id, now)
		if err != nil {
			log.Printf("sweeper: failed to resolve regions for %s: %v", id, err)
			continue
		}

		s.mu.Lock()
		previous, stillWatched := s.watched[id]
		if stillWatched {
			s.watched[id] = regions
		}
		s.mu.Unlock()

		if stillWatched && !equalRegions(previous, regions) {
			s.publishChange(ctx, id, regions)
		}
	}
}

func (s *Sweeper) publishChange(ctx context.Context, userID types.ID, regions []string) {
	if s.bus == nil {
		return
	}
	event := events.NewEvent(events.TypeRegionsChanged, map[string]any{
		"user_id": userID.String(),
		"regions": regions,
	})
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Printf("sweeper: failed to publish regions change: %v", err)
	}
}

func equalRegions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
