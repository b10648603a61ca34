package zone

import (
	"context"
	"testing"
	"time"

	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/events"
	"github.com/telegis/platform/internal/shared/types"
)

var (
	adminActor = auth.Actor{ID: types.NewID(), Name: "Asha Rao", Role: auth.RoleAdmin}
	techActor  = auth.Actor{ID: types.NewID(), Name: "Vikram Singh", Role: auth.RoleTechnician}
)

func newTestRegistry(t *testing.T) (*Registry, *audit.MemoryStore, *events.MemoryBus) {
	t.Helper()
	auditStore := audit.NewMemoryStore()
	trail := audit.NewTrail(auditStore)
	bus := events.NewMemoryBus()
	reg := NewRegistry(NewMemoryStore(), trail,
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }),
		WithBus(bus))
	return reg, auditStore, bus
}

func TestCreateZone(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   auth.Actor
		zName   string
		regions []string
		wantErr error
	}{
		{"admin creates zone", adminActor, "North Zone", []string{"Delhi", "Punjab"}, nil},
		{"technician forbidden", techActor, "North Zone", []string{"Delhi"}, errors.ErrForbidden},
		{"empty name rejected", adminActor, "  ", []string{"Delhi"}, errors.ErrValidation},
		{"empty regions rejected", adminActor, "Empty Zone", nil, errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _, _ := newTestRegistry(t)
			z, err := reg.CreateZone(ctx, tt.actor, tt.zName, "", "#1565c0", tt.regions)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if z.ID.IsZero() {
				t.Error("expected generated zone id")
			}
			if len(z.Regions) != len(tt.regions) {
				t.Errorf("regions = %v, want %v", z.Regions, tt.regions)
			}
		})
	}
}

func TestCreateZoneDeduplicatesRegions(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	z, err := reg.CreateZone(context.Background(), adminActor, "North Zone", "", "", []string{"Delhi", "Punjab", "Delhi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(z.Regions) != 2 {
		t.Errorf("regions = %v, want deduplicated pair", z.Regions)
	}
}

func TestAssignZonesReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(t)

	north, err := reg.CreateZone(ctx, adminActor, "North Zone", "", "", []string{"Delhi", "Punjab"})
	if err != nil {
		t.Fatalf("create north: %v", err)
	}
	south, err := reg.CreateZone(ctx, adminActor, "South Zone", "", "", []string{"Kerala", "Tamil Nadu"})
	if err != nil {
		t.Fatalf("create south: %v", err)
	}

	userID := types.NewID()
	if _, err := reg.AssignZones(ctx, adminActor, userID, []string{north.ID.String()}); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := reg.AssignZones(ctx, adminActor, userID, []string{south.ID.String()}); err != nil {
		t.Fatalf("second assign: %v", err)
	}

	regions, err := reg.RegionsForUser(ctx, userID)
	if err != nil {
		t.Fatalf("regions: %v", err)
	}
	want := []string{"Kerala", "Tamil Nadu"}
	if len(regions) != len(want) {
		t.Fatalf("regions = %v, want %v", regions, want)
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Errorf("regions[%d] = %q, want %q", i, regions[i], want[i])
		}
	}
}

func TestAssignZonesRejectsUnknownZone(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.AssignZones(context.Background(), adminActor, types.NewID(), []string{types.NewID().String()})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestAssignZonesForbiddenForNonAdmin(t *testing.T) {
	reg, auditStore, _ := newTestRegistry(t)
	_, err := reg.AssignZones(context.Background(), techActor, types.NewID(), nil)
	if !errors.Is(err, errors.ErrForbidden) {
		t.Fatalf("want forbidden, got %v", err)
	}

	entries, _ := auditStore.List(context.Background(), audit.Filter{EventType: audit.EventAccessDenied})
	if len(entries) != 1 {
		t.Fatalf("want one denial entry, got %d", len(entries))
	}
	if entries[0].Success {
		t.Error("denial entry should be marked unsuccessful")
	}
}

func TestRegionsForUserUnionsZones(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(t)

	north, _ := reg.CreateZone(ctx, adminActor, "North Zone", "", "", []string{"Delhi", "Punjab"})
	west, _ := reg.CreateZone(ctx, adminActor, "West Zone", "", "", []string{"Punjab", "Rajasthan"})

	userID := types.NewID()
	if _, err := reg.AssignZones(ctx, adminActor, userID, []string{north.ID.String(), west.ID.String()}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	regions, err := reg.RegionsForUser(ctx, userID)
	if err != nil {
		t.Fatalf("regions: %v", err)
	}
	want := []string{"Delhi", "Punjab", "Rajasthan"}
	if len(regions) != len(want) {
		t.Fatalf("regions = %v, want %v", regions, want)
	}
}

func TestRegionsForUserWithoutAssignment(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	regions, err := reg.RegionsForUser(context.Background(), types.NewID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("regions = %v, want empty", regions)
	}
}

func TestDeleteZoneCascadesToAssignments(t *testing.T) {
	ctx := context.Background()
	reg, auditStore, bus := newTestRegistry(t)

	north, _ := reg.CreateZone(ctx, adminActor, "North Zone", "", "", []string{"Delhi", "Punjab"})
	south, _ := reg.CreateZone(ctx, adminActor, "South Zone", "", "", []string{"Kerala"})

	userID := types.NewID()
	if _, err := reg.AssignZones(ctx, adminActor, userID, []string{north.ID.String(), south.ID.String()}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	deleted, err := reg.DeleteZone(ctx, adminActor, north.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected deletion")
	}

	a, err := reg.AssignmentForUser(ctx, userID)
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if a == nil {
		t.Fatal("assignment should survive the cascade")
	}
	if len(a.ZoneIDs) != 1 || a.ZoneIDs[0] != south.ID.String() {
		t.Errorf("zone ids = %v, want only %s", a.ZoneIDs, south.ID)
	}

	regions, err := reg.RegionsForUser(ctx, userID)
	if err != nil {
		t.Fatalf("regions: %v", err)
	}
	if len(regions) != 1 || regions[0] != "Kerala" {
		t.Errorf("regions = %v, want [Kerala]", regions)
	}

	entries, _ := auditStore.List(ctx, audit.Filter{EventType: audit.EventZoneDeleted})
	if len(entries) != 1 {
		t.Fatalf("want one delete entry, got %d", len(entries))
	}
	if entries[0].Severity != audit.SeverityWarning {
		t.Errorf("severity = %s, want warning", entries[0].Severity)
	}
	affected, ok := entries[0].Details["affected_users"].([]string)
	if !ok || len(affected) != 1 || affected[0] != userID.String() {
		t.Errorf("affected_users = %v, want [%s]", entries[0].Details["affected_users"], userID)
	}

	var sawDelete bool
	for _, ev := range bus.Published() {
		if ev.Type == events.TypeZoneDeleted {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Error("expected zone.deleted event")
	}
}

func TestDeleteUnknownZone(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.DeleteZone(context.Background(), adminActor, types.NewID())
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestUpdateZone(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(t)

	z, _ := reg.CreateZone(ctx, adminActor, "North Zone", "", "", []string{"Delhi"})

	name := "Northern Circle"
	regions := []string{"Delhi", "Haryana"}
	updated, err := reg.UpdateZone(ctx, adminActor, z.ID, Update{Name: &name, Regions: regions})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Northern Circle" {
		t.Errorf("name = %q", updated.Name)
	}
	if len(updated.Regions) != 2 {
		t.Errorf("regions = %v", updated.Regions)
	}

	empty := ""
	if _, err := reg.UpdateZone(ctx, adminActor, z.ID, Update{Name: &empty}); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("want validation error for empty name, got %v", err)
	}
}

func TestRegionsForUserSkipsStaleZoneIDs(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(t)
	store := reg.store.(*MemoryStore)

	z, _ := reg.CreateZone(ctx, adminActor, "North Zone", "", "", []string{"Delhi"})
	userID := types.NewID()
	if _, err := reg.AssignZones(ctx, adminActor, userID, []string{z.ID.String()}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Simulate an assignment still referencing a zone removed out of band.
	if _, err := store.DeleteZone(ctx, z.ID); err != nil {
		t.Fatalf("raw delete: %v", err)
	}

	regions, err := reg.RegionsForUser(ctx, userID)
	if err != nil {
		t.Fatalf("regions: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("regions = %v, want empty", regions)
	}
}
