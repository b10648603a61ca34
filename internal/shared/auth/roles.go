// Package auth provides authentication and authorization types.
package auth

// Role represents a user role in the console.
type Role string

const (
	RoleAdmin      Role = "admin"      // Full platform access, implicit every region
	RoleManager    Role = "manager"    // Reviews requests, grants temporary access
	RoleTechnician Role = "technician" // Field edits within assigned regions
	RoleUser       Role = "user"       // Read-only map and dashboard access
)

// roleLevels orders the hierarchy; a higher level dominates a lower one.
var roleLevels = map[Role]int{
	RoleUser:       1,
	RoleTechnician: 2,
	RoleManager:    3,
	RoleAdmin:      4,
}

// Level returns the hierarchy level of the role, 0 for unknown roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// AtLeast reports whether the role sits at or above min in the hierarchy.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level() && r.Level() > 0
}

// Permission represents a specific action on the console.
type Permission string

// Map and tooling permissions
const (
	PermMapView      Permission = "map.view"
	PermMapDraw      Permission = "map.draw"
	PermInfraEdit    Permission = "infrastructure.edit"
	PermInfraDelete  Permission = "infrastructure.delete"
	PermDashboard    Permission = "dashboard.view"
	PermReportView   Permission = "report.view"
	PermReportExport Permission = "report.export"
)

// Authorization administration permissions
const (
	PermZoneManage    Permission = "zone.manage"
	PermGrantIssue    Permission = "grant.issue"
	PermGrantRevoke   Permission = "grant.revoke"
	PermRequestReview Permission = "request.review"
	PermAuditRead     Permission = "audit.read"
	PermAnalyticsRead Permission = "analytics.read"
	PermUserManage    Permission = "user.manage"
)

// RolePermissions maps roles to their default permission sets. Admin is
// absent on purpose: admins implicitly hold every permission and the
// resolver short-circuits before consulting this table.
var RolePermissions = map[Role][]Permission{
	RoleManager: {
		PermMapView, PermMapDraw, PermDashboard,
		PermInfraEdit,
		PermReportView, PermReportExport,
		PermGrantIssue, PermGrantRevoke, PermRequestReview,
		PermAuditRead, PermAnalyticsRead,
	},
	RoleTechnician: {
		PermMapView, PermMapDraw, PermDashboard,
		PermInfraEdit,
		PermReportView,
	},
	RoleUser: {
		PermMapView, PermDashboard,
	},
}

// AllPermissions returns every permission known to the console.
func AllPermissions() []Permission {
	return []Permission{
		PermMapView, PermMapDraw, PermInfraEdit, PermInfraDelete,
		PermDashboard, PermReportView, PermReportExport,
		PermZoneManage, PermGrantIssue, PermGrantRevoke, PermRequestReview,
		PermAuditRead, PermAnalyticsRead, PermUserManage,
	}
}

// DefaultPermissions returns the default permission set for a role. Admin
// receives the full catalog.
func DefaultPermissions(role Role) []Permission {
	if role == RoleAdmin {
		return AllPermissions()
	}
	return RolePermissions[role]
}
