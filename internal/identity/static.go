package identity

import (
	"context"
	"sync"

	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// StaticDirectory is an in-memory Directory used in tests and when the
// engine runs without the staff directory.
type StaticDirectory struct {
	mu       sync.RWMutex
	users    map[types.ID]User
	managers map[types.ID][]types.ID // manager -> subordinates
}

// NewStaticDirectory creates an empty in-memory directory
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		users:    make(map[types.ID]User),
		managers: make(map[types.ID][]types.ID),
	}
}

// AddUser registers a user profile
func (d *StaticDirectory) AddUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// SetSubordinates declares the users reporting to a manager
func (d *StaticDirectory) SetSubordinates(managerID types.ID, subordinates ...types.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.managers[managerID] = append([]types.ID(nil), subordinates...)
}

// GetUser fetches a user profile by id
func (d *StaticDirectory) GetUser(ctx context.Context, id types.ID) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, errors.NotFound("user", id.String())
	}
	return u, nil
}

// Subordinates lists the user ids reporting to the given manager
func (d *StaticDirectory) Subordinates(ctx context.Context, managerID types.ID) ([]types.ID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]types.ID(nil), d.managers[managerID]...), nil
}

var _ Directory = (*StaticDirectory)(nil)
