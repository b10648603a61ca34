package grant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/events"
	"github.com/telegis/platform/internal/shared/metrics"
	"github.com/telegis/platform/internal/shared/types"
)

// Store is the persistence contract for temporary grants.
type Store interface {
	Insert(ctx context.Context, g *Grant) error
	Get(ctx context.Context, id types.ID) (*Grant, error)
	Update(ctx context.Context, g *Grant) error
	Delete(ctx context.Context, id types.ID) (bool, error)
	ListForUser(ctx context.Context, userID types.ID) ([]Grant, error)
	ListAll(ctx context.Context) ([]Grant, error)

	// MarkExpired flips Active to false on every unrevoked active grant
	// whose expiry is at or before t and returns how many rows changed.
	MarkExpired(ctx context.Context, t time.Time) (int, error)
}

// Service manages the temporary grant lifecycle.
type Service struct {
	store Store
	trail *audit.Trail
	bus   events.EventBus
	now   func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source (useful for tests)
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithBus enables event publication for grant lifecycle changes
func WithBus(bus events.EventBus) Option {
	return func(s *Service) {
		s.bus = bus
	}
}

// NewService creates a grant service
func NewService(store Store, trail *audit.Trail, opts ...Option) *Service {
	s := &Service{
		store: store,
		trail: trail,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant issues a new temporary grant. The expiry must be strictly in the
// future. Manager role or above required.
func (s *Service) Grant(ctx context.Context, grantor auth.Actor, userID types.ID, region string, expiresAt time.Time, reason string) (*Grant, error) {
	if err := s.requireReviewer(ctx, grantor, "issue grant"); err != nil {
		return nil, err
	}
	if userID.IsZero() {
		return nil, errors.Validation("user id is required", nil)
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, errors.Validation("region is required", nil)
	}

	now := s.now().UTC()
	if !expiresAt.After(now) {
		return nil, errors.Validation("expiry must be in the future", map[string]string{
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		})
	}

	g := &Grant{
		ID:        types.NewID(),
		UserID:    userID,
		Region:    region,
		GrantedBy: grantor.ID,
		GrantedAt: now,
		ExpiresAt: expiresAt.UTC(),
		Reason:    strings.TrimSpace(reason),
		Active:    true,
	}
	if err := s.store.Insert(ctx, g); err != nil {
		return nil, errors.Storage(err, "failed to create grant")
	}

	metrics.RecordGrantIssued()
	s.trail.Record(ctx, audit.NewEntry(grantor, audit.EventGrantCreated, "granted temporary access").
		WithRegion(region).
		WithDetails(map[string]any{
			"grant_id":   g.ID.String(),
			"user_id":    userID.String(),
			"expires_at": g.ExpiresAt.Format(time.RFC3339),
		}))
	s.publish(ctx, events.NewEvent(events.TypeGrantCreated, g).WithActor(grantor.ID))
	return g, nil
}

// Get returns a grant by id
func (s *Service) Get(ctx context.Context, id types.ID) (*Grant, error) {
	return s.store.Get(ctx, id)
}

// ListForUser returns every grant ever issued to the user, effective or not.
func (s *Service) ListForUser(ctx context.Context, userID types.ID) ([]Grant, error) {
	return s.store.ListForUser(ctx, userID)
}

// ListActive returns the grants that confer access to the user right now.
// Effective validity is recomputed here on every call; the stored Active
// flag alone is never trusted, a grant can lapse between sweeps.
func (s *Service) ListActive(ctx context.Context, userID types.ID) ([]Grant, error) {
	all, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var active []Grant
	for _, g := range all {
		if g.EffectiveAt(now) {
			active = append(active, g)
		}
	}
	return active, nil
}

// ActiveRegions returns the distinct regions the user's effective grants
// cover at time t.
func (s *Service) ActiveRegions(ctx context.Context, userID types.ID, t time.Time) ([]string, error) {
	all, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := types.NewRegionSet()
	for _, g := range all {
		if g.EffectiveAt(t) {
			set.Add(g.Region)
		}
	}
	return set.Sorted(), nil
}

// Revoke terminates a grant before its natural expiry. Revoking a grant
// that is already revoked or already swept surfaces InvalidState instead
// of silently succeeding, so operator mistakes stay visible.
func (s *Service) Revoke(ctx context.Context, revoker auth.Actor, id types.ID, reason string) (*Grant, error) {
	if err := s.requireReviewer(ctx, revoker, "revoke grant"); err != nil {
		return nil, err
	}

	g, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Terminal() {
		return nil, errors.InvalidState("grant is no longer active")
	}

	now := s.now().UTC()
	g.Active = false
	g.RevokedAt = &now
	g.RevokedBy = &revoker.ID
	g.RevokedReason = strings.TrimSpace(reason)
	if err := s.store.Update(ctx, g); err != nil {
		return nil, errors.Storage(err, "failed to revoke grant")
	}

	metrics.RecordGrantRevoked()
	s.trail.Record(ctx, audit.NewEntry(revoker, audit.EventGrantRevoked, "revoked temporary access").
		WithSeverity(audit.SeverityWarning).
		WithRegion(g.Region).
		WithDetails(map[string]any{
			"grant_id": g.ID.String(),
			"user_id":  g.UserID.String(),
			"reason":   g.RevokedReason,
		}))
	s.publish(ctx, events.NewEvent(events.TypeGrantRevoked, g).WithActor(revoker.ID))
	return g, nil
}

// Extend pushes out the expiry of a currently effective grant. A lapsed
// or revoked grant cannot be extended; issue a fresh grant instead.
func (s *Service) Extend(ctx context.Context, extender auth.Actor, id types.ID, newExpiresAt time.Time) (*Grant, error) {
	if err := s.requireReviewer(ctx, extender, "extend grant"); err != nil {
		return nil, err
	}

	g, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !g.EffectiveAt(now) {
		return nil, errors.InvalidState("only an effective grant can be extended")
	}
	if !newExpiresAt.After(now) {
		return nil, errors.Validation("new expiry must be in the future", nil)
	}

	oldExpiry := g.ExpiresAt
	g.ExpiresAt = newExpiresAt.UTC()
	if err := s.store.Update(ctx, g); err != nil {
		return nil, errors.Storage(err, "failed to extend grant")
	}

	s.trail.Record(ctx, audit.NewEntry(extender, audit.EventGrantExtended, "extended temporary access").
		WithRegion(g.Region).
		WithDetails(map[string]any{
			"grant_id":       g.ID.String(),
			"user_id":        g.UserID.String(),
			"old_expires_at": oldExpiry.Format(time.RFC3339),
			"new_expires_at": g.ExpiresAt.Format(time.RFC3339),
		}))
	s.publish(ctx, events.NewEvent(events.TypeGrantExtended, g).WithActor(extender.ID))
	return g, nil
}

// SweepExpired flips Active to false on every grant that has lapsed by
// time alone. Revoked grants and grants already swept are untouched, so
// the operation is idempotent: a second sweep with no clock movement
// reports zero.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	count, err := s.store.MarkExpired(ctx, now)
	if err != nil {
		return 0, errors.Storage(err, "failed to sweep expired grants")
	}
	if count > 0 {
		metrics.RecordGrantsExpired(count)
		s.trail.Record(ctx, audit.NewEntry(auth.SystemActor(), audit.EventGrantExpired,
			fmt.Sprintf("swept %d expired grants", count)).
			WithDetails(map[string]any{"count": count}))
		s.publish(ctx, events.NewEvent(events.TypeGrantExpired, map[string]any{"count": count}))
	}
	return count, nil
}

// Delete removes a grant entirely. Unlike revoke this leaves no row
// behind, so it is restricted to admins and the audit entry is written
// before the removal.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id types.ID) (bool, error) {
	if !actor.IsAdmin() {
		s.trail.Record(ctx, audit.NewEntry(actor, audit.EventAccessDenied, "delete grant").
			WithSeverity(audit.SeverityWarning).
			Failed("admin role required"))
		return false, errors.Forbidden("grant deletion requires admin role")
	}

	g, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}

	s.trail.Record(ctx, audit.NewEntry(actor, audit.EventGrantDeleted, "deleted grant record").
		WithSeverity(audit.SeverityWarning).
		WithRegion(g.Region).
		WithDetails(map[string]any{
			"grant_id": g.ID.String(),
			"user_id":  g.UserID.String(),
		}))

	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, errors.Storage(err, "failed to delete grant")
	}
	s.publish(ctx, events.NewEvent(events.TypeGrantDeleted, g).WithActor(actor.ID))
	return ok, nil
}

func (s *Service) requireReviewer(ctx context.Context, actor auth.Actor, action string) error {
	if actor.CanReview() {
		return nil
	}
	s.trail.Record(ctx, audit.NewEntry(actor, audit.EventAccessDenied, action).
		WithSeverity(audit.SeverityWarning).
		Failed("manager role required"))
	return errors.Forbidden("grant management requires manager role")
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Printf("grant: failed to publish %s: %v", event.Type, err)
	}
}
