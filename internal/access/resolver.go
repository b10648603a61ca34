// Package access computes effective permissions and effective regions.
// It is the read side of the engine: every function here is a pure join
// over the identity directory, the zone registry, and the grant store,
// and nothing in it mutates state.
package access

import (
	"context"
	"time"

	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/identity"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/metrics"
	"github.com/telegis/platform/internal/shared/types"
)

// DefaultRegions is the full region universe granted to admins when the
// deployment does not configure its own list.
var DefaultRegions = []string{
	"Andhra Pradesh", "Assam", "Bihar", "Delhi", "Gujarat", "Haryana",
	"Himachal Pradesh", "Karnataka", "Kerala", "Madhya Pradesh",
	"Maharashtra", "Odisha", "Punjab", "Rajasthan", "Tamil Nadu",
	"Telangana", "Uttar Pradesh", "West Bengal",
}

// ZoneReader is the read-only slice of the zone registry the resolver needs.
type ZoneReader interface {
	RegionsForUser(ctx context.Context, userID types.ID) ([]string, error)
}

// GrantReader is the read-only slice of the grant store the resolver needs.
type GrantReader interface {
	ActiveRegions(ctx context.Context, userID types.ID, t time.Time) ([]string, error)
}

// Resolver answers "what may this user do, and where" at a point in time.
type Resolver struct {
	directory identity.Directory
	zones     ZoneReader
	grants    GrantReader
	trail     *audit.Trail
	universe  []string
	now       func() time.Time
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock overrides the time source (useful for tests)
func WithClock(fn func() time.Time) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithRegionUniverse overrides the full region list admins resolve to
func WithRegionUniverse(regions []string) Option {
	return func(r *Resolver) {
		if len(regions) > 0 {
			r.universe = types.NewRegionSet(regions...).Sorted()
		}
	}
}

// NewResolver creates a permission resolver
func NewResolver(directory identity.Directory, zones ZoneReader, grants GrantReader, trail *audit.Trail, opts ...Option) *Resolver {
	r := &Resolver{
		directory: directory,
		zones:     zones,
		grants:    grants,
		trail:     trail,
		universe:  DefaultRegions,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EffectiveRegions returns the regions the user may touch at time t:
// explicit assignments, zone coverage, and active temporary grants,
// unioned. Admins resolve to the full universe without any reads.
func (r *Resolver) EffectiveRegions(ctx context.Context, userID types.ID, t time.Time) ([]string, error) {
	user, err := r.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err, "failed to load user profile")
	}
	if user.Role == auth.RoleAdmin {
		return append([]string(nil), r.universe...), nil
	}

	set := types.NewRegionSet(user.ExplicitRegions...)

	zoneRegions, err := r.zones.RegionsForUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err, "failed to load zone regions")
	}
	set.AddAll(zoneRegions)

	grantRegions, err := r.grants.ActiveRegions(ctx, userID, t)
	if err != nil {
		return nil, errors.Storage(err, "failed to load grant regions")
	}
	set.AddAll(grantRegions)

	return set.Sorted(), nil
}

// EffectivePermissions returns the user's role defaults plus explicit
// per-user extras. Admins hold the full catalog.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID types.ID) ([]auth.Permission, error) {
	user, err := r.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err, "failed to load user profile")
	}
	if user.Role == auth.RoleAdmin {
		return auth.AllPermissions(), nil
	}

	seen := make(map[auth.Permission]struct{})
	var perms []auth.Permission
	for _, p := range auth.DefaultPermissions(user.Role) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	for _, raw := range user.ExplicitPermissions {
		p := auth.Permission(raw)
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	return perms, nil
}

// HasPermission reports whether the user holds the permission
func (r *Resolver) HasPermission(ctx context.Context, userID types.ID, perm auth.Permission) (bool, error) {
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyPermission reports whether the user holds at least one of the
// given permissions.
func (r *Resolver) HasAnyPermission(ctx context.Context, userID types.ID, perms ...auth.Permission) (bool, error) {
	held, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	set := make(map[auth.Permission]struct{}, len(held))
	for _, p := range held {
		set[p] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := set[p]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the user holds every given permission
func (r *Resolver) HasAllPermissions(ctx context.Context, userID types.ID, perms ...auth.Permission) (bool, error) {
	held, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	set := make(map[auth.Permission]struct{}, len(held))
	for _, p := range held {
		set[p] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := set[p]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// HasMinimumRole reports whether the user's role sits at or above min
func (r *Resolver) HasMinimumRole(ctx context.Context, userID types.ID, min auth.Role) (bool, error) {
	user, err := r.directory.GetUser(ctx, userID)
	if err != nil {
		return false, errors.Storage(err, "failed to load user profile")
	}
	return user.Role.AtLeast(min), nil
}

// CanManageUser reports whether the actor may administer the target user.
// Admins manage everyone but themselves through this check; managers
// manage their direct subordinates only.
func (r *Resolver) CanManageUser(ctx context.Context, actorID, targetID types.ID) (bool, error) {
	if actorID == targetID {
		return false, nil
	}
	actor, err := r.directory.GetUser(ctx, actorID)
	if err != nil {
		return false, errors.Storage(err, "failed to load user profile")
	}
	if actor.Role == auth.RoleAdmin {
		return true, nil
	}
	if actor.Role != auth.RoleManager {
		return false, nil
	}
	subordinates, err := r.directory.Subordinates(ctx, actorID)
	if err != nil {
		return false, errors.Storage(err, "failed to load org hierarchy")
	}
	for _, id := range subordinates {
		if id == targetID {
			return true, nil
		}
	}
	return false, nil
}

// CanAccessRegion reports whether the user may touch the region right now.
// A persistence failure on any underlying read fails closed: the caller
// gets false together with the error, never a speculative yes. Denials
// are audited; the storage error itself is also surfaced so callers can
// distinguish "no access" from "could not decide".
func (r *Resolver) CanAccessRegion(ctx context.Context, userID types.ID, region string) (bool, error) {
	regions, err := r.EffectiveRegions(ctx, userID, r.now().UTC())
	if err != nil {
		metrics.RecordAccessCheck("error")
		return false, err
	}
	allowed := false
	for _, got := range regions {
		if got == region {
			allowed = true
			break
		}
	}

	if user, derr := r.directory.GetUser(ctx, userID); derr == nil {
		if allowed {
			r.trail.Record(ctx, audit.NewEntry(user.Actor(), audit.EventAccessChecked, "region access granted").
				WithRegion(region))
		} else {
			r.trail.Record(ctx, audit.NewEntry(user.Actor(), audit.EventAccessDenied, "region access denied").
				WithSeverity(audit.SeverityWarning).
				WithRegion(region).
				Failed("region not in effective set"))
		}
	}
	if allowed {
		metrics.RecordAccessCheck("granted")
	} else {
		metrics.RecordAccessCheck("denied")
	}
	return allowed, nil
}
