package request

import (
	"context"
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

// Store is the persistence contract for access requests.
type Store interface {
	Insert(ctx context.Context, req *Request) error
	Get(ctx context.Context, id types.ID) (*Request, error)
	Update(ctx context.Context, req *Request) error
	ListForUser(ctx context.Context, userID types.ID) ([]Request, error)
	ListByStatus(ctx context.Context, status Status) ([]Request, error)
}

// Workflow manages the access request lifecycle.
type Workflow struct {
	store Store
	trail *audit.Trail
	bus   events.EventBus
	now   func() time.Time
}

// Option configures a Workflow
type Option func(*Workflow)

// WithClock overrides the time source (useful for tests)
func WithClock(fn func() time.Time) Option {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// WithBus enables event publication for request lifecycle changes
func WithBus(bus events.EventBus) Option {
	return func(w *Workflow) {
		w.bus = bus
	}
}

// NewWorkflow creates an access request workflow
func NewWorkflow(store Store, trail *audit.Trail, opts ...Option) *Workflow {
	w := &Workflow{
		store: store,
		trail: trail,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Submit opens a new pending request for the actor's own account.
func (w *Workflow) Submit(ctx context.Context, actor auth.Actor, regions []string, reason string) (*Request, error) {
	regionSet := types.NewRegionSet(regions...)
	if regionSet.Len() == 0 {
		return nil, errors.Validation("at least one region is required", nil)
	}

	req := &Request{
		ID:          types.NewID(),
		UserID:      actor.ID,
		Regions:     regionSet.Sorted(),
		Reason:      strings.TrimSpace(reason),
		Status:      StatusPending,
		SubmittedAt: w.now().UTC(),
	}
	if err := w.store.Insert(ctx, req); err != nil {
		return nil, errors.Storage(err, "failed to submit request")
	}

	w.trail.Record(ctx, audit.NewEntry(actor, audit.EventRequestSubmitted, "requested region access").
		WithDetails(map[string]any{"request_id": req.ID.String(), "regions": req.Regions}))
	w.publish(ctx, events.NewEvent(events.TypeRequestOpened, req).WithActor(actor.ID))
	return req, nil
}

// Get returns a request by id
func (w *Workflow) Get(ctx context.Context, id types.ID) (*Request, error) {
	return w.store.Get(ctx, id)
}

// ListForUser returns every request the user has submitted
func (w *Workflow) ListForUser(ctx context.Context, userID types.ID) ([]Request, error) {
	return w.store.ListForUser(ctx, userID)
}

// ListPending returns every request awaiting review
func (w *Workflow) ListPending(ctx context.Context) ([]Request, error) {
	return w.store.ListByStatus(ctx, StatusPending)
}

// Approve records a favourable decision on a pending request. Approval
// is a record only; it has no side effects on grants or zones.
func (w *Workflow) Approve(ctx context.Context, reviewer auth.Actor, id types.ID, notes string) (*Request, error) {
	return w.review(ctx, reviewer, id, StatusApproved, notes)
}

// Reject records an unfavourable decision on a pending request.
func (w *Workflow) Reject(ctx context.Context, reviewer auth.Actor, id types.ID, notes string) (*Request, error) {
	return w.review(ctx, reviewer, id, StatusRejected, notes)
}

func (w *Workflow) review(ctx context.Context, reviewer auth.Actor, id types.ID, disposition Status, notes string) (*Request, error) {
	if !reviewer.CanReview() {
		w.trail.Record(ctx, audit.NewEntry(reviewer, audit.EventAccessDenied, "review access request").
			WithSeverity(audit.SeverityWarning).
			Failed("manager role required"))
		return nil, errors.Forbidden("request review requires manager role")
	}

	req, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, errors.InvalidState("request has already been " + string(req.Status))
	}

	now := w.now().UTC()
	req.Status = disposition
	req.ReviewedBy = &reviewer.ID
	req.ReviewedAt = &now
	req.ReviewNotes = strings.TrimSpace(notes)
	if err := w.store.Update(ctx, req); err != nil {
		return nil, errors.Storage(err, "failed to record review")
	}

	metrics.RecordRequestReviewed(string(disposition))
	eventType := audit.EventRequestApproved
	if disposition == StatusRejected {
		eventType = audit.EventRequestRejected
	}
	w.trail.Record(ctx, audit.NewEntry(reviewer, eventType, string(disposition)+" access request").
		WithDetails(map[string]any{
			"request_id": req.ID.String(),
			"user_id":    req.UserID.String(),
			"regions":    req.Regions,
		}))
	w.publish(ctx, events.NewEvent(events.TypeRequestClosed, req).WithActor(reviewer.ID))
	return req, nil
}

// Cancel withdraws a pending request. Only the owner may cancel.
func (w *Workflow) Cancel(ctx context.Context, actor auth.Actor, id types.ID) (*Request, error) {
	req, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != actor.ID {
		w.trail.Record(ctx, audit.NewEntry(actor, audit.EventAccessDenied, "cancel access request").
			WithSeverity(audit.SeverityWarning).
			Failed("only the owner may cancel"))
		return nil, errors.Forbidden("only the requesting user may cancel")
	}
	if req.Status != StatusPending {
		return nil, errors.InvalidState("request has already been " + string(req.Status))
	}

	now := w.now().UTC()
	req.Status = StatusCancelled
	req.ReviewedAt = &now
	if err := w.store.Update(ctx, req); err != nil {
		return nil, errors.Storage(err, "failed to cancel request")
	}

	w.trail.Record(ctx, audit.NewEntry(actor, audit.EventRequestCancelled, "cancelled access request").
		WithDetails(map[string]any{"request_id": req.ID.String()}))
	w.publish(ctx, events.NewEvent(events.TypeRequestClosed, req).WithActor(actor.ID))
	return req, nil
}

// PendingCountForUser returns how many of the user's requests await review
func (w *Workflow) PendingCountForUser(ctx context.Context, userID types.ID) (int, error) {
	all, err := w.store.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, req := range all {
		if req.Status == StatusPending {
			count++
		}
	}
	return count, nil
}

// HasPendingRequestForRegion reports whether any of the user's pending
// requests names the region.
func (w *Workflow) HasPendingRequestForRegion(ctx context.Context, userID types.ID, region string) (bool, error) {
	all, err := w.store.ListForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, req := range all {
		if req.Status != StatusPending {
			continue
		}
		for _, r := range req.Regions {
			if r == region {
				return true, nil
			}
		}
	}
	return false, nil
}

func (w *Workflow) publish(ctx context.Context, event events.Event) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(ctx, event); err != nil {
		log.Printf("request: failed to publish %s: %v", event.Type, err)
	}
}
