package events

import (
	"context"
	"log"
	"sync"
)

// MemoryBus is an in-process EventBus used in tests and when the engine
// runs without an event store. Delivery is synchronous.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []memorySubscription
	closed   bool

	// Published keeps every event for test assertions
	published []Event
}

type memorySubscription struct {
	pattern string
	handler Handler
}

// NewMemoryBus creates an in-process event bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish delivers the event to every matching subscriber
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.published = append(b.published, event)
	subs := make([]memorySubscription, len(b.handlers))
	copy(subs, b.handlers)
	b.mu.Unlock()

	for _, s := range subs {
		if !matchesPattern(event.Type, s.pattern) {
			continue
		}
		if err := s.handler(ctx, event); err != nil {
			log.Printf("Handler error for event %s: %v", event.ID, err)
		}
	}
	return nil
}

// Subscribe registers a handler for events matching the pattern
func (b *MemoryBus) Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, memorySubscription{pattern: pattern, handler: handler})
	return nil
}

// Published returns a copy of every event published so far
func (b *MemoryBus) Published() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.published))
	copy(out, b.published)
	return out
}

// Close stops delivery
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
}

// Health always reports healthy for the in-process bus
func (b *MemoryBus) Health() error {
	return nil
}

var _ EventBus = (*MemoryBus)(nil)
