package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/telegis/platform/internal/shared/types"
)

// Event represents a domain event published by the authorization engine.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	// ActorID is the user whose action produced the event
	ActorID types.ID `json:"actor_id,omitempty"`

	// Event data
	Data any `json:"data"`
}

// Event types emitted by the engine. Downstream consumers (the console UI
// session layer, reporting) subscribe by prefix, e.g. "grant.*".
const (
	TypeGrantCreated   = "grant.created"
	TypeGrantRevoked   = "grant.revoked"
	TypeGrantExtended  = "grant.extended"
	TypeGrantExpired   = "grant.expired"
	TypeGrantDeleted   = "grant.deleted"
	TypeZoneCreated    = "zone.created"
	TypeZoneUpdated    = "zone.updated"
	TypeZoneDeleted    = "zone.deleted"
	TypeZoneAssigned   = "zone.assigned"
	TypeRequestOpened  = "request.submitted"
	TypeRequestClosed  = "request.reviewed"
	TypeRegionsChanged = "access.regions_changed"
)

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "authz-engine",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithActor sets the actor on the event
func (e Event) WithActor(actorID types.ID) Event {
	e.ActorID = actorID
	return e
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// EventBus defines the interface for event publishing and subscription
type EventBus interface {
	// Publish publishes an event to the bus
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription to events matching a pattern
	Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error

	// Close closes the event bus connection
	Close()

	// Health checks the event bus connection
	Health() error
}
