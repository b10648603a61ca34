package grant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// MemoryStore is an in-memory Store for tests and single-node deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[types.ID]*Grant
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[types.ID]*Grant)}
}

func (s *MemoryStore) Insert(_ context.Context, g *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.grants[g.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, errors.NotFound("grant", id.String())
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, g *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[g.ID]; !ok {
		return errors.NotFound("grant", g.ID.String())
	}
	cp := *g
	s.grants[g.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[id]; !ok {
		return false, nil
	}
	delete(s.grants, id)
	return true, nil
}

func (s *MemoryStore) ListForUser(_ context.Context, userID types.ID) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Grant
	for _, g := range s.grants {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	sortGrants(out)
	return out, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Grant, 0, len(s.grants))
	for _, g := range s.grants {
		out = append(out, *g)
	}
	sortGrants(out)
	return out, nil
}

func (s *MemoryStore) MarkExpired(_ context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, g := range s.grants {
		if g.Active && g.RevokedAt == nil && !t.Before(g.ExpiresAt) {
			g.Active = false
			count++
		}
	}
	return count, nil
}

func sortGrants(grants []Grant) {
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].GrantedAt.Equal(grants[j].GrantedAt) {
			return grants[i].ID < grants[j].ID
		}
		return grants[i].GrantedAt.After(grants[j].GrantedAt)
	})
}
