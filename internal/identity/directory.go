// Package identity consumes the operator's staff directory, the read-only
// source of user profiles and the org hierarchy. The directory is owned by
// another system; this package never writes to it.
package identity

import (
	"context"

	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/types"
)

// User is the profile consumed by the authorization engine. Explicit
// permissions and regions are per-user overrides on top of role defaults.
type User struct {
	ID                  types.ID  `json:"id"`
	Name                string    `json:"name"`
	Role                auth.Role `json:"role"`
	ExplicitPermissions []string  `json:"explicit_permissions"`
	ExplicitRegions     []string  `json:"explicit_regions"`
}

// Actor converts the profile into the actor shape used on mutations.
func (u User) Actor() auth.Actor {
	return auth.Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

// Directory provides read-only access to users and the org hierarchy.
type Directory interface {
	// GetUser fetches a user profile by id
	GetUser(ctx context.Context, id types.ID) (User, error)

	// Subordinates lists the user ids reporting to the given manager
	Subordinates(ctx context.Context, managerID types.ID) ([]types.ID, error)
}
