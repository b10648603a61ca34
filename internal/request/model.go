package request

import (
	"time"

	"github.com/telegis/platform/internal/shared/types"
)

// Status is the lifecycle state of an access request. A request starts
// pending and transitions exactly once to one of the terminal states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Valid reports whether the status is a known value
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Request is a user's petition for access to one or more regions. The
// decision is a record only: approving a request does not itself grant
// access, the reviewer issues grants or zone assignments separately.
type Request struct {
	ID          types.ID   `json:"id"`
	UserID      types.ID   `json:"user_id"`
	Regions     []string   `json:"regions"`
	Reason      string     `json:"reason"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ReviewedBy  *types.ID  `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
}
