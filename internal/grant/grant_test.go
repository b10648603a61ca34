package grant

import (
	"context"
	"testing"
	"time"

	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

var (
	adminActor   = auth.Actor{ID: types.NewID(), Name: "Asha Rao", Role: auth.RoleAdmin}
	managerActor = auth.Actor{ID: types.NewID(), Name: "Ravi Mehta", Role: auth.RoleManager}
	techActor    = auth.Actor{ID: types.NewID(), Name: "Vikram Singh", Role: auth.RoleTechnician}
)

type fixture struct {
	service    *Service
	auditStore *audit.MemoryStore
	clock      *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	auditStore := audit.NewMemoryStore()
	trail := audit.NewTrail(auditStore, audit.WithClock(clock.Now))
	return &fixture{
		service:    NewService(NewMemoryStore(), trail, WithClock(clock.Now)),
		auditStore: auditStore,
		clock:      clock,
	}
}

func TestGrantValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	tests := []struct {
		name      string
		actor     auth.Actor
		region    string
		expiresAt time.Time
		wantErr   error
	}{
		{"valid grant", managerActor, "Delhi", f.clock.Now().Add(time.Hour), nil},
		{"technician forbidden", techActor, "Delhi", f.clock.Now().Add(time.Hour), errors.ErrForbidden},
		{"empty region", managerActor, " ", f.clock.Now().Add(time.Hour), errors.ErrValidation},
		{"expiry in the past", managerActor, "Delhi", f.clock.Now().Add(-time.Minute), errors.ErrValidation},
		{"expiry exactly now", managerActor, "Delhi", f.clock.Now(), errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := f.service.Grant(ctx, tt.actor, userID, tt.region, tt.expiresAt, "maintenance window")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !g.Active {
				t.Error("new grant should start active")
			}
			if !g.EffectiveAt(f.clock.Now()) {
				t.Error("new grant should be effective immediately")
			}
		})
	}
}

func TestGrantExpiresByClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	g, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(2*time.Minute), "fiber cut repair")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	active, err := f.service.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != g.ID {
		t.Fatalf("active = %v, want the fresh grant", active)
	}

	f.clock.Advance(3 * time.Minute)

	active, err = f.service.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("list active after expiry: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active = %v, want empty after expiry", active)
	}

	regions, err := f.service.ActiveRegions(ctx, userID, f.clock.Now())
	if err != nil {
		t.Fatalf("active regions: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("regions = %v, want empty after expiry", regions)
	}
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	expiry := f.clock.Now().Add(2 * time.Minute)
	if _, err := f.service.Grant(ctx, managerActor, userID, "Delhi", expiry, ""); err != nil {
		t.Fatalf("grant: %v", err)
	}

	f.clock.Advance(2 * time.Minute)

	active, err := f.service.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("a grant expiring exactly now must not be active, got %v", active)
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	g, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(time.Hour), "")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	revoked, err := f.service.Revoke(ctx, adminActor, g.ID, "access no longer needed")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked.Active {
		t.Error("revoked grant should be inactive")
	}
	if revoked.RevokedAt == nil || revoked.RevokedBy == nil || *revoked.RevokedBy != adminActor.ID {
		t.Error("revocation metadata not recorded")
	}
	if revoked.EffectiveAt(f.clock.Now()) {
		t.Error("revoked grant must not be effective")
	}
}

func TestDoubleRevokeIsInvalidState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	g, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(time.Hour), "")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := f.service.Revoke(ctx, adminActor, g.ID, "first"); err != nil {
		t.Fatalf("first revoke: %v", err)
	}

	if _, err := f.service.Revoke(ctx, adminActor, g.ID, "second"); !errors.Is(err, errors.ErrInvalidState) {
		t.Fatalf("second revoke: want invalid state, got %v", err)
	}

	entries, _ := f.auditStore.List(ctx, audit.Filter{EventType: audit.EventGrantRevoked})
	if len(entries) != 1 {
		t.Errorf("want exactly one revoke audit entry, got %d", len(entries))
	}
	if len(entries) == 1 && entries[0].Severity != audit.SeverityWarning {
		t.Errorf("severity = %s, want warning", entries[0].Severity)
	}
}

func TestRevokeExpiredGrantIsInvalidState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	g, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(time.Minute), "")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	f.clock.Advance(2 * time.Minute)
	if _, err := f.service.SweepExpired(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if _, err := f.service.Revoke(ctx, adminActor, g.ID, ""); !errors.Is(err, errors.ErrInvalidState) {
		t.Fatalf("want invalid state, got %v", err)
	}
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	g, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(time.Hour), "")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	newExpiry := f.clock.Now().Add(4 * time.Hour)
	extended, err := f.service.Extend(ctx, managerActor, g.ID, newExpiry)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !extended.ExpiresAt.Equal(newExpiry) {
		t.Errorf("expiry = %v, want %v", extended.ExpiresAt, newExpiry)
	}
	if !extended.Active {
		t.Error("extend must not change the active state")
	}

	entries, _ := f.auditStore.List(ctx, audit.Filter{EventType: audit.EventGrantExtended})
	if len(entries) != 1 {
		t.Fatalf("want one extend audit entry, got %d", len(entries))
	}
	if entries[0].Details["old_expires_at"] == nil || entries[0].Details["new_expires_at"] == nil {
		t.Error("extend entry should record old and new expiry")
	}
}

func TestExtendLapsedGrantIsInvalidState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	g, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(time.Minute), "")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	f.clock.Advance(2 * time.Minute)

	if _, err := f.service.Extend(ctx, managerActor, g.ID, f.clock.Now().Add(time.Hour)); !errors.Is(err, errors.ErrInvalidState) {
		t.Fatalf("want invalid state, got %v", err)
	}
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	if _, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(time.Minute), ""); err != nil {
		t.Fatalf("grant delhi: %v", err)
	}
	if _, err := f.service.Grant(ctx, managerActor, userID, "Punjab", f.clock.Now().Add(time.Hour), ""); err != nil {
		t.Fatalf("grant punjab: %v", err)
	}
	revokable, err := f.service.Grant(ctx, managerActor, userID, "Haryana", f.clock.Now().Add(time.Minute), "")
	if err != nil {
		t.Fatalf("grant haryana: %v", err)
	}
	if _, err := f.service.Revoke(ctx, adminActor, revokable.ID, ""); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	f.clock.Advance(2 * time.Minute)

	// Only the Delhi grant lapsed by time alone; the revoked grant is
	// already inactive and must not be counted.
	count, err := f.service.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if count != 1 {
		t.Errorf("first sweep count = %d, want 1", count)
	}

	count, err = f.service.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep count = %d, want 0", count)
	}

	active, _ := f.service.ListActive(ctx, userID)
	if len(active) != 1 || active[0].Region != "Punjab" {
		t.Errorf("active = %v, want only Punjab", active)
	}
}

func TestActiveStateIsMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	g, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(time.Minute), "")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	f.clock.Advance(2 * time.Minute)
	if _, err := f.service.SweepExpired(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// No surviving operation can reactivate a lapsed grant.
	if _, err := f.service.Extend(ctx, managerActor, g.ID, f.clock.Now().Add(time.Hour)); !errors.Is(err, errors.ErrInvalidState) {
		t.Fatalf("extend: want invalid state, got %v", err)
	}
	if _, err := f.service.Revoke(ctx, adminActor, g.ID, ""); !errors.Is(err, errors.ErrInvalidState) {
		t.Fatalf("revoke: want invalid state, got %v", err)
	}

	got, err := f.service.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active {
		t.Error("grant reactivated after sweep")
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := types.NewID()

	g, err := f.service.Grant(ctx, managerActor, userID, "Delhi", f.clock.Now().Add(time.Hour), "")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	if _, err := f.service.Delete(ctx, managerActor, g.ID); !errors.Is(err, errors.ErrForbidden) {
		t.Fatalf("manager delete: want forbidden, got %v", err)
	}

	deleted, err := f.service.Delete(ctx, adminActor, g.ID)
	if err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected deletion")
	}
	if _, err := f.service.Get(ctx, g.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("want not found after delete, got %v", err)
	}

	// The row is gone; the warning entry is the only remaining record.
	entries, _ := f.auditStore.List(ctx, audit.Filter{EventType: audit.EventGrantDeleted})
	if len(entries) != 1 {
		t.Fatalf("want one delete audit entry, got %d", len(entries))
	}
	if entries[0].Severity != audit.SeverityWarning {
		t.Errorf("severity = %s, want warning", entries[0].Severity)
	}
}

func TestRevokeUnknownGrant(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Revoke(context.Background(), adminActor, types.NewID(), ""); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}
