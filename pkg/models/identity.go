package models

// Identity is the authenticated user's role/permission-bearing record for the
// current session. At most one Identity is live at a time; it is created by a
// successful login and destroyed on logout, idle timeout, or a 401 from any
// API call.
type Identity struct {
	ID             string   `json:"_id"`
	Username       string   `json:"username"`
	DisplayName    string   `json:"displayName,omitempty"`
	Role           string   `json:"role"`
	Permissions    []string `json:"permissions,omitempty"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
}

// Role constants. The server may grant further roles; these are the ones the
// client branches on.
const (
	RoleAdmin        = "admin"
	RoleGroupManager = "group_manager"
	RoleEventManager = "event_manager"
	RoleCheckInStaff = "check_in_staff"
	RoleMember       = "member"
)

// Well-known permission names used by protected views.
const (
	PermManagePeople     = "manage_people"
	PermManageHouseholds = "manage_households"
	PermManageUsers      = "manage_users"
	PermViewEvents       = "view_events"
	PermManageEvents     = "manage_events"
	PermPerformCheckIn   = "perform_check_in"
	PermViewGroups       = "view_groups"
	PermManageGroups     = "manage_groups"
)

// IsAdmin reports whether the identity carries the administrative override.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == RoleAdmin
}

// HasPermission reports whether the named permission appears in the explicit
// permission set. It does not apply the admin override; that belongs to the
// permission model.
func (id *Identity) HasPermission(name string) bool {
	if id == nil {
		return false
	}
	for _, p := range id.Permissions {
		if p == name {
			return true
		}
	}
	return false
}
