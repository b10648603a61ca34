package zone

import (
	"time"

	"github.com/telegis/platform/internal/shared/types"
)

// Zone is an admin-defined named grouping of regions used to grant access
// to many regions at once (e.g. "North Zone" = Punjab, Haryana, Delhi).
type Zone struct {
	ID          types.ID  `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Regions     []string  `json:"regions"`
	CreatedBy   types.ID  `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Assignment links a user to a set of zones. At most one assignment exists
// per user; re-assigning replaces the previous zone set entirely.
type Assignment struct {
	UserID     types.ID  `json:"user_id"`
	ZoneIDs    []string  `json:"zone_ids"`
	AssignedBy types.ID  `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Update carries partial zone changes; nil fields are left untouched.
type Update struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Color       *string  `json:"color,omitempty"`
	Regions     []string `json:"regions,omitempty"`
}
