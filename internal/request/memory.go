package request

import (
	"context"
	"sort"
	"sync"

	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// MemoryStore is an in-memory Store for tests and single-node deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[types.ID]*Request
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[types.ID]*Request)}
}

func (s *MemoryStore) Insert(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = copyRequest(req)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, errors.NotFound("access request", id.String())
	}
	return copyRequest(req), nil
}

func (s *MemoryStore) Update(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return errors.NotFound("access request", req.ID.String())
	}
	s.requests[req.ID] = copyRequest(req)
	return nil
}

func (s *MemoryStore) ListForUser(_ context.Context, userID types.ID) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Request
	for _, req := range s.requests {
		if req.UserID == userID {
			out = append(out, *copyRequest(req))
		}
	}
	sortRequests(out)
	return out, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status Status) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Request
	for _, req := range s.requests {
		if req.Status == status {
			out = append(out, *copyRequest(req))
		}
	}
	sortRequests(out)
	return out, nil
}

func copyRequest(req *Request) *Request {
	cp := *req
	cp.Regions = append([]string(nil), req.Regions...)
	return &cp
}

func sortRequests(reqs []Request) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].SubmittedAt.Equal(reqs[j].SubmittedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].SubmittedAt.After(reqs[j].SubmittedAt)
	})
}
