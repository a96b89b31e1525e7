// Package permissions is the pure capability model: boolean functions of
// (identity, permission, optional resource) with no state and no I/O, callable
// synchronously from anywhere.
package permissions

import (
	"github.com/parishops/flock/pkg/apperrors"
	"github.com/parishops/flock/pkg/models"
)

// GroupAction is a resource-scoped action on a group.
type GroupAction string

const (
	GroupView           GroupAction = "view this group"
	GroupEdit           GroupAction = "edit this group"
	GroupDelete         GroupAction = "delete this group"
	GroupAddMember      GroupAction = "add members to this group"
	GroupRemoveMember   GroupAction = "remove members from this group"
	GroupCreateSubgroup GroupAction = "create subgroups"
)

// groupActionRoles is the fixed action -> allowed membership roles table.
// View is handled separately because it depends on visibility.
var groupActionRoles = map[GroupAction][]string{
	GroupEdit:           {models.GroupRoleAdmin, models.GroupRoleModerator},
	GroupDelete:         {models.GroupRoleAdmin},
	GroupAddMember:      {models.GroupRoleAdmin, models.GroupRoleModerator},
	GroupRemoveMember:   {models.GroupRoleAdmin, models.GroupRoleModerator},
	GroupCreateSubgroup: {models.GroupRoleAdmin, models.GroupRoleModerator},
}

// Check reports whether the identity may exercise the named permission.
// Role admin short-circuits to true for every permission.
func Check(identity *models.Identity, permission string) bool {
	if identity == nil {
		return false
	}
	if identity.IsAdmin() {
		return true
	}
	return identity.HasPermission(permission)
}

// CheckGroup reports whether the identity may perform action on group.
// Global admins and group-level admins pass every check; otherwise the fixed
// action table applies against the caller's membership role.
func CheckGroup(identity *models.Identity, action GroupAction, group *models.Group) bool {
	if identity == nil || group == nil {
		return false
	}
	if identity.IsAdmin() {
		return true
	}
	if group.MemberRole(identity.ID) == models.GroupRoleAdmin {
		return true
	}

	if action == GroupView {
		if group.VisibilityType == models.VisibilityPublic {
			return true
		}
		// Restricted and private groups require membership.
		return group.Member(identity.ID) != nil
	}

	allowed, ok := groupActionRoles[action]
	if !ok {
		return false
	}
	role := group.MemberRole(identity.ID)
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// CanManageGroups reports whether the identity may use the admin-level group
// management surface.
func CanManageGroups(identity *models.Identity) bool {
	if identity == nil {
		return false
	}
	return identity.Role == models.RoleAdmin || identity.Role == models.RoleGroupManager
}

// Denied builds the caller-visible error for a failed group check.
func Denied(action GroupAction) error {
	return &apperrors.PermissionError{Action: string(action)}
}
