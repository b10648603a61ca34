package grant

import (
	"time"

	"github.com/telegis/platform/internal/shared/types"
)

// Grant is a time-bounded permission for one user to access one region.
// Active is monotonic: it starts true and only ever flips to false, either
// through revocation or through an expiry sweep. Whether a grant currently
// confers access is a derived property, see EffectiveAt.
type Grant struct {
	ID            types.ID   `json:"id"`
	UserID        types.ID   `json:"user_id"`
	Region        string     `json:"region"`
	GrantedBy     types.ID   `json:"granted_by"`
	GrantedAt     time.Time  `json:"granted_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Reason        string     `json:"reason"`
	Active        bool       `json:"active"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedBy     *types.ID  `json:"revoked_by,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
}

// EffectiveAt reports whether the grant confers access at time t. The
// expiry boundary is exclusive: a grant expiring exactly at t is invalid.
func (g *Grant) EffectiveAt(t time.Time) bool {
	return g.Active && g.RevokedAt == nil && t.Before(g.ExpiresAt)
}

// Terminal reports whether the grant has left the active state for good,
// either by revocation or by a completed expiry sweep.
func (g *Grant) Terminal() bool {
	return !g.Active || g.RevokedAt != nil
}
