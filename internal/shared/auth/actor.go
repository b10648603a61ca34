package auth

import (
	"context"

	"github.com/telegis/platform/internal/shared/types"
)

// Actor identifies who performs an operation. Every mutating call on the
// authorization engine takes an explicit actor; the audit trail records it.
type Actor struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
	Role Role     `json:"role"`
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanReview reports whether the actor may review access requests.
func (a Actor) CanReview() bool {
	return a.Role.AtLeast(RoleManager)
}

// SystemActor is the pseudo-actor attributed to background maintenance
// such as the expiry sweep.
func SystemActor() Actor {
	return Actor{
		ID:   types.MustParseID("00000000-0000-0000-0000-000000000001"),
		Name: "system",
		Role: RoleAdmin,
	}
}

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}
