package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/telegis/platform/internal/access"
	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/grant"
	"github.com/telegis/platform/internal/identity"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/events"
	"github.com/telegis/platform/internal/shared/types"
	"github.com/telegis/platform/internal/zone"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	sweeper *Sweeper
	grants  *grant.Service
	bus     *events.MemoryBus
	admin   auth.Actor
	user    identity.User
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	trail := audit.NewTrail(audit.NewMemoryStore(), audit.WithClock(clock.Now))
	directory := identity.NewStaticDirectory()

	admin := identity.User{ID: types.NewID(), Name: "Asha Rao", Role: auth.RoleAdmin}
	user := identity.User{ID: types.NewID(), Name: "Vikram Singh", Role: auth.RoleTechnician}
	directory.AddUser(admin)
	directory.AddUser(user)

	zones := zone.NewRegistry(zone.NewMemoryStore(), trail, zone.WithClock(clock.Now))
	grants := grant.NewService(grant.NewMemoryStore(), trail, grant.WithClock(clock.Now))
	resolver := access.NewResolver(directory, zones, grants, trail, access.WithClock(clock.Now))
	bus := events.NewMemoryBus()

	return &fixture{
		sweeper: New(grants, resolver, WithClock(clock.Now), WithBus(bus)),
		grants:  grants,
		bus:     bus,
		admin:   admin.Actor(),
		user:    user,
		clock:   clock,
	}
}

func TestTickPublishesRegionChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.grants.Grant(ctx, f.admin, f.user.ID, "Delhi", f.clock.Now().Add(time.Minute), ""); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := f.sweeper.Watch(ctx, f.user.ID); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Nothing expired yet; the snapshot is unchanged.
	f.sweeper.Tick(ctx)
	if n := len(f.bus.Published()); n != 0 {
		t.Fatalf("events after first tick = %d, want 0", n)
	}

	f.clock.Advance(2 * time.Minute)
	f.sweeper.Tick(ctx)

	published := f.bus.Published()
	if len(published) != 1 {
		t.Fatalf("events = %d, want 1 regions-changed", len(published))
	}
	if published[0].Type != events.TypeRegionsChanged {
		t.Errorf("event type = %s, want %s", published[0].Type, events.TypeRegionsChanged)
	}

	// Idempotent: with no further clock movement the next tick is silent.
	f.sweeper.Tick(ctx)
	if n := len(f.bus.Published()); n != 1 {
		t.Errorf("events after repeat tick = %d, want still 1", n)
	}
}

func TestUnwatchedUserIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.grants.Grant(ctx, f.admin, f.user.ID, "Delhi", f.clock.Now().Add(time.Minute), ""); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := f.sweeper.Watch(ctx, f.user.ID); err != nil {
		t.Fatalf("watch: %v", err)
	}
	f.sweeper.Unwatch(f.user.ID)

	f.clock.Advance(2 * time.Minute)
	f.sweeper.Tick(ctx)

	if n := len(f.bus.Published()); n != 0 {
		t.Errorf("events = %d, want 0 after unwatch", n)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	sw := New(f.grants, nopResolver{}, WithInterval(5*time.Millisecond))

	sw.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	sw.Stop()

	// Stop is safe to call again once the loop has exited.
	sw.Stop()
}

type nopResolver struct{}

func (nopResolver) EffectiveRegions(context.Context, types.ID, time.Time) ([]string, error) {
	return nil, nil
}
