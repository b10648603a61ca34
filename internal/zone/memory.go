package zone

import (
	"context"
	"sort"
	"sync"

	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// MemoryStore is an in-memory Store for tests and single-node deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	zones       map[types.ID]*Zone
	assignments map[types.ID]*Assignment
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		zones:       make(map[types.ID]*Zone),
		assignments: make(map[types.ID]*Assignment),
	}
}

func (s *MemoryStore) InsertZone(_ context.Context, z *Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *z
	s.zones[z.ID] = &cp
	return nil
}

func (s *MemoryStore) GetZone(_ context.Context, id types.ID) (*Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[id]
	if !ok {
		return nil, errors.NotFound("zone", id.String())
	}
	cp := *z
	return &cp, nil
}

func (s *MemoryStore) ListZones(_ context.Context) ([]Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, *z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateZone(_ context.Context, z *Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.zones[z.ID]; !ok {
		return errors.NotFound("zone", z.ID.String())
	}
	cp := *z
	s.zones[z.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteZone(_ context.Context, id types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.zones[id]; !ok {
		return false, nil
	}
	delete(s.zones, id)
	return true, nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, userID types.ID) (*Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[userID]
	if !ok {
		return nil, errors.NotFound("zone assignment", userID.String())
	}
	cp := *a
	cp.ZoneIDs = append([]string(nil), a.ZoneIDs...)
	return &cp, nil
}

func (s *MemoryStore) UpsertAssignment(_ context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.ZoneIDs = append([]string(nil), a.ZoneIDs...)
	s.assignments[a.UserID] = &cp
	return nil
}

func (s *MemoryStore) ListAssignments(_ context.Context) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		cp := *a
		cp.ZoneIDs = append([]string(nil), a.ZoneIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) RemoveZoneFromAssignments(_ context.Context, zoneID types.ID) ([]types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected []types.ID
	for userID, a := range s.assignments {
		kept := a.ZoneIDs[:0:0]
		removed := false
		for _, id := range a.ZoneIDs {
			if id == zoneID.String() {
				removed = true
				continue
			}
			kept = append(kept, id)
		}
		if removed {
			a.ZoneIDs = kept
			affected = append(affected, userID)
		}
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i] < affected[j] })
	return affected, nil
}
