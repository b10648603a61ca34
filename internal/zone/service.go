package zone

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/events"
	"github.com/telegis/platform/internal/shared/types"
)

// Store is the persistence contract for zones and zone assignments.
type Store interface {
	InsertZone(ctx context.Context, z *Zone) error
	GetZone(ctx context.Context, id types.ID) (*Zone, error)
	ListZones(ctx context.Context) ([]Zone, error)
	UpdateZone(ctx context.Context, z *Zone) error
	DeleteZone(ctx context.Context, id types.ID) (bool, error)

	GetAssignment(ctx context.Context, userID types.ID) (*Assignment, error)
	UpsertAssignment(ctx context.Context, a *Assignment) error
	ListAssignments(ctx context.Context) ([]Assignment, error)

	// RemoveZoneFromAssignments strips the zone id from every assignment
	// referencing it and returns the affected user ids. Assignments are
	// shrunk, never deleted.
	RemoveZoneFromAssignments(ctx context.Context, zoneID types.ID) ([]types.ID, error)
}

// Registry manages zones and per-user zone assignments. All mutations are
// admin-only and write one audit entry each.
type Registry struct {
	store Store
	trail *audit.Trail
	bus   events.EventBus
	now   func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithClock overrides the time source (useful for tests)
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithBus enables event publication for zone mutations
func WithBus(bus events.EventBus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}

// NewRegistry creates a zone registry
func NewRegistry(store Store, trail *audit.Trail, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		trail: trail,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateZone creates a named grouping of regions. Admin only.
func (r *Registry) CreateZone(ctx context.Context, actor auth.Actor, name, description, color string, regions []string) (*Zone, error) {
	if err := r.requireAdmin(ctx, actor, "create zone"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation("zone name is required", nil)
	}
	regionSet := types.NewRegionSet(regions...)
	if regionSet.Len() == 0 {
		return nil, errors.Validation("zone needs at least one region", nil)
	}

	now := r.now().UTC()
	z := &Zone{
		ID:          types.NewID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Color:       strings.TrimSpace(color),
		Regions:     regionSet.Sorted(),
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.InsertZone(ctx, z); err != nil {
		return nil, errors.Storage(err, "failed to create zone")
	}

	r.trail.Record(ctx, audit.NewEntry(actor, audit.EventZoneCreated, "created zone "+z.Name).
		WithDetails(map[string]any{"zone_id": z.ID.String(), "regions": z.Regions}))
	r.publish(ctx, events.NewEvent(events.TypeZoneCreated, z).WithActor(actor.ID))
	return z, nil
}

// GetZone returns a zone by id
func (r *Registry) GetZone(ctx context.Context, id types.ID) (*Zone, error) {
	z, err := r.store.GetZone(ctx, id)
	if err != nil {
		return nil, err
	}
	return z, nil
}

// ListZones returns every zone
func (r *Registry) ListZones(ctx context.Context) ([]Zone, error) {
	return r.store.ListZones(ctx)
}

// UpdateZone applies a partial update to a zone. Admin only.
func (r *Registry) UpdateZone(ctx context.Context, actor auth.Actor, id types.ID, upd Update) (*Zone, error) {
	if err := r.requireAdmin(ctx, actor, "update zone"); err != nil {
		return nil, err
	}

	z, err := r.store.GetZone(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, errors.Validation("zone name is required", nil)
		}
		z.Name = name
	}
	if upd.Description != nil {
		z.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Color != nil {
		z.Color = strings.TrimSpace(*upd.Color)
	}
	if upd.Regions != nil {
		regionSet := types.NewRegionSet(upd.Regions...)
		if regionSet.Len() == 0 {
			return nil, errors.Validation("zone needs at least one region", nil)
		}
		z.Regions = regionSet.Sorted()
	}
	z.UpdatedAt = r.now().UTC()

	if err := r.store.UpdateZone(ctx, z); err != nil {
		return nil, errors.Storage(err, "failed to update zone")
	}

	r.trail.Record(ctx, audit.NewEntry(actor, audit.EventZoneUpdated, "updated zone "+z.Name).
		WithDetails(map[string]any{"zone_id": z.ID.String()}))
	r.publish(ctx, events.NewEvent(events.TypeZoneUpdated, z).WithActor(actor.ID))
	return z, nil
}

// DeleteZone removes a zone and cascades: the zone id is stripped from
// every assignment referencing it. Assignments themselves survive. Admin
// only; audited at warning severity.
func (r *Registry) DeleteZone(ctx context.Context, actor auth.Actor, id types.ID) (bool, error) {
	if err := r.requireAdmin(ctx, actor, "delete zone"); err != nil {
		return false, err
	}

	z, err := r.store.GetZone(ctx, id)
	if err != nil {
		return false, err
	}

	affected, err := r.store.RemoveZoneFromAssignments(ctx, id)
	if err != nil {
		return false, errors.Storage(err, "failed to cascade zone removal")
	}
	ok, err := r.store.DeleteZone(ctx, id)
	if err != nil {
		return false, errors.Storage(err, "failed to delete zone")
	}

	affectedIDs := make([]string, len(affected))
	for i, uid := range affected {
		affectedIDs[i] = uid.String()
	}
	r.trail.Record(ctx, audit.NewEntry(actor, audit.EventZoneDeleted, "deleted zone "+z.Name).
		WithSeverity(audit.SeverityWarning).
		WithDetails(map[string]any{
			"zone_id":        z.ID.String(),
			"regions":        z.Regions,
			"affected_users": affectedIDs,
		}))
	r.publish(ctx, events.NewEvent(events.TypeZoneDeleted, z).WithActor(actor.ID))
	return ok, nil
}

// AssignZones replaces the user's zone assignment with the given zone ids.
// The previous assignment is not merged; last write wins. Admin only.
func (r *Registry) AssignZones(ctx context.Context, actor auth.Actor, userID types.ID, zoneIDs []string) (*Assignment, error) {
	if err := r.requireAdmin(ctx, actor, "assign zones"); err != nil {
		return nil, err
	}
	if userID.IsZero() {
		return nil, errors.Validation("user id is required", nil)
	}

	// Deduplicate and verify every referenced zone exists at write time;
	// stale references can only appear later through a delete race.
	seen := make(map[string]struct{}, len(zoneIDs))
	var ids []string
	for _, raw := range zoneIDs {
		id, err := types.ParseID(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.Validation("invalid zone id", map[string]string{"zone_id": raw})
		}
		if _, dup := seen[id.String()]; dup {
			continue
		}
		seen[id.String()] = struct{}{}
		if _, err := r.store.GetZone(ctx, id); err != nil {
			return nil, err
		}
		ids = append(ids, id.String())
	}

	a := &Assignment{
		UserID:     userID,
		ZoneIDs:    ids,
		AssignedBy: actor.ID,
		AssignedAt: r.now().UTC(),
	}
	if err := r.store.UpsertAssignment(ctx, a); err != nil {
		return nil, errors.Storage(err, "failed to assign zones")
	}

	r.trail.Record(ctx, audit.NewEntry(actor, audit.EventZoneAssigned, "assigned zones to user").
		WithDetails(map[string]any{"user_id": userID.String(), "zone_ids": ids}))
	r.publish(ctx, events.NewEvent(events.TypeZoneAssigned, a).WithActor(actor.ID))
	return a, nil
}

// ListAssignments returns every zone assignment
func (r *Registry) ListAssignments(ctx context.Context) ([]Assignment, error) {
	return r.store.ListAssignments(ctx)
}

// AssignmentForUser returns the user's current assignment, or nil if none.
func (r *Registry) AssignmentForUser(ctx context.Context, userID types.ID) (*Assignment, error) {
	a, err := r.store.GetAssignment(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// RegionsForUser unions the regions of every zone referenced by the user's
// current assignment. Zone ids without a matching zone are skipped: the
// assignment may reference a since-deleted zone through a delete race.
func (r *Registry) RegionsForUser(ctx context.Context, userID types.ID) ([]string, error) {
	a, err := r.AssignmentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}

	set := types.NewRegionSet()
	for _, raw := range a.ZoneIDs {
		z, err := r.store.GetZone(ctx, types.ID(raw))
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		set.AddAll(z.Regions)
	}
	return set.Sorted(), nil
}

// requireAdmin rejects non-admin actors and records the denial
func (r *Registry) requireAdmin(ctx context.Context, actor auth.Actor, action string) error {
	if actor.IsAdmin() {
		return nil
	}
	r.trail.Record(ctx, audit.NewEntry(actor, audit.EventAccessDenied, action).
		WithSeverity(audit.SeverityWarning).
		Failed("admin role required"))
	return errors.Forbidden("zone management requires admin role")
}

// publish sends an event to the bus if one is configured. Publication is
// best effort and never fails the mutation.
func (r *Registry) publish(ctx context.Context, event events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, event); err != nil {
		log.Printf("zone: failed to publish %s: %v", event.Type, err)
	}
}
