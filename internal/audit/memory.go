package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps the trail in process memory, newest first. Used in
// tests and when the engine runs without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry // index 0 is newest
}

// NewMemoryStore creates an empty in-memory audit store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert prepends the entry
func (s *MemoryStore) Insert(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]Entry{*e}, s.entries...)
	return nil
}

// List returns matching entries, newest first
func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for i := range s.entries {
		e := s.entries[i]
		if !f.Matches(&e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the total number of entries
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// EvictOldest removes the n oldest entries
func (s *MemoryStore) EvictOldest(ctx context.Context, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return 0, nil
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	s.entries = s.entries[:len(s.entries)-n]
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
