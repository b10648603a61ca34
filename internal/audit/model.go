package audit

import (
	"time"

	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/types"
)

// Severity classifies how alarming an audit entry is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// EventType is the business category of an audit entry
type EventType string

const (
	// Zone registry
	EventZoneCreated  EventType = "zone.created"
	EventZoneUpdated  EventType = "zone.updated"
	EventZoneDeleted  EventType = "zone.deleted"
	EventZoneAssigned EventType = "zone.assigned"

	// Temporary grants
	EventGrantCreated  EventType = "grant.created"
	EventGrantRevoked  EventType = "grant.revoked"
	EventGrantExtended EventType = "grant.extended"
	EventGrantExpired  EventType = "grant.expired"
	EventGrantDeleted  EventType = "grant.deleted"

	// Access requests
	EventRequestSubmitted EventType = "request.submitted"
	EventRequestApproved  EventType = "request.approved"
	EventRequestRejected  EventType = "request.rejected"
	EventRequestCancelled EventType = "request.cancelled"

	// Authorization checks and tool usage
	EventAccessChecked EventType = "access.checked"
	EventAccessDenied  EventType = "access.denied"
	EventToolUsed      EventType = "tool.used"
	EventDataExported  EventType = "data.exported"
)

// Entry is an immutable audit log record. Entries are never updated or
// deleted individually; the trail only evicts the oldest entries once the
// size cap is exceeded.
type Entry struct {
	ID        types.ID  `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Actor
	UserID   types.ID  `json:"user_id"`
	UserName string    `json:"user_name"`
	UserRole auth.Role `json:"user_role"`

	// Event
	EventType EventType      `json:"event_type"`
	Severity  Severity       `json:"severity"`
	Region    string         `json:"region,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`

	// Outcome
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewEntry creates an audit entry for the given actor and event. The trail
// assigns ID and timestamp when the entry is recorded.
func NewEntry(actor auth.Actor, eventType EventType, action string) *Entry {
	return &Entry{
		UserID:    actor.ID,
		UserName:  actor.Name,
		UserRole:  actor.Role,
		EventType: eventType,
		Severity:  SeverityInfo,
		Action:    action,
		Success:   true,
	}
}

// WithSeverity overrides the default info severity
func (e *Entry) WithSeverity(s Severity) *Entry {
	e.Severity = s
	return e
}

// WithRegion tags the entry with a region
func (e *Entry) WithRegion(region string) *Entry {
	e.Region = region
	return e
}

// WithTool tags the entry with the console tool that triggered it
func (e *Entry) WithTool(tool string) *Entry {
	e.ToolName = tool
	return e
}

// WithDetails attaches structured details
func (e *Entry) WithDetails(details map[string]any) *Entry {
	e.Details = details
	return e
}

// Failed marks the entry as a failed action with an error message
func (e *Entry) Failed(message string) *Entry {
	e.Success = false
	e.ErrorMessage = message
	if e.Severity == SeverityInfo {
		e.Severity = SeverityError
	}
	return e
}

// Filter selects audit entries. All set fields must match (conjunctive);
// zero-valued fields match everything.
type Filter struct {
	UserID    types.ID   `json:"user_id,omitempty"`
	Region    string     `json:"region,omitempty"`
	EventType EventType  `json:"event_type,omitempty"`
	Severity  Severity   `json:"severity,omitempty"`
	Success   *bool      `json:"success,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// Matches reports whether the entry passes the filter
func (f Filter) Matches(e *Entry) bool {
	if !f.UserID.IsZero() && e.UserID != f.UserID {
		return false
	}
	if f.Region != "" && e.Region != f.Region {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// Stats summarizes a slice of the trail
type Stats struct {
	Total        int            `json:"total"`
	ByType       map[string]int `json:"by_type"`
	ByRegion     map[string]int `json:"by_region"`
	ByUser       map[string]int `json:"by_user"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
	Recent       []Entry        `json:"recent"`
}
