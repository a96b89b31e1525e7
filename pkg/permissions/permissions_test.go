package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parishops/flock/pkg/models"
)

func admin() *models.Identity {
	return &models.Identity{ID: "u-admin", Role: models.RoleAdmin}
}

func memberWith(perms ...string) *models.Identity {
	return &models.Identity{ID: "u-member", Role: models.RoleMember, Permissions: perms}
}

func groupWith(members ...models.GroupMember) *models.Group {
	return &models.Group{
		ID:             "g-1",
		Name:           "Young Adults",
		VisibilityType: models.VisibilityPrivate,
		Members:        members,
	}
}

var allActions = []GroupAction{
	GroupView, GroupEdit, GroupDelete, GroupAddMember, GroupRemoveMember, GroupCreateSubgroup,
}

func TestCheck_AdminOverride(t *testing.T) {
	for _, perm := range []string{
		models.PermManagePeople, models.PermManageUsers, models.PermViewGroups,
		models.PermManageGroups, models.PermPerformCheckIn, "some_future_permission",
	} {
		assert.True(t, Check(admin(), perm), "admin denied %s", perm)
	}
}

func TestCheck_ExplicitPermissionSet(t *testing.T) {
	id := memberWith(models.PermViewEvents)
	assert.True(t, Check(id, models.PermViewEvents))
	assert.False(t, Check(id, models.PermManageEvents))
	assert.False(t, Check(nil, models.PermViewEvents))
}

func TestCheckGroup_AdminOverrideEveryAction(t *testing.T) {
	g := groupWith() // admin is not even a member
	for _, action := range allActions {
		assert.True(t, CheckGroup(admin(), action, g), "admin denied %s", action)
	}
}

func TestCheckGroup_GroupAdminOverride(t *testing.T) {
	id := memberWith()
	g := groupWith(models.GroupMember{UserID: id.ID, Role: models.GroupRoleAdmin})
	for _, action := range allActions {
		assert.True(t, CheckGroup(id, action, g), "group admin denied %s", action)
	}
}

func TestCheckGroup_ActionTable(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		action GroupAction
		want   bool
	}{
		{"moderator can edit", models.GroupRoleModerator, GroupEdit, true},
		{"moderator can add members", models.GroupRoleModerator, GroupAddMember, true},
		{"moderator can remove members", models.GroupRoleModerator, GroupRemoveMember, true},
		{"moderator can create subgroups", models.GroupRoleModerator, GroupCreateSubgroup, true},
		{"moderator cannot delete", models.GroupRoleModerator, GroupDelete, false},
		{"member cannot edit", models.GroupRoleMember, GroupEdit, false},
		{"member cannot delete", models.GroupRoleMember, GroupDelete, false},
		{"member can view private group", models.GroupRoleMember, GroupView, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := memberWith()
			g := groupWith(models.GroupMember{UserID: id.ID, Role: tt.role})
			assert.Equal(t, tt.want, CheckGroup(id, tt.action, g))
		})
	}
}

func TestCheckGroup_Visibility(t *testing.T) {
	outsider := memberWith()

	public := groupWith()
	public.VisibilityType = models.VisibilityPublic
	assert.True(t, CheckGroup(outsider, GroupView, public))

	restricted := groupWith()
	restricted.VisibilityType = models.VisibilityRestricted
	assert.False(t, CheckGroup(outsider, GroupView, restricted))

	private := groupWith()
	assert.False(t, CheckGroup(outsider, GroupView, private))

	insider := memberWith()
	withInsider := groupWith(models.GroupMember{UserID: insider.ID, Role: models.GroupRoleMember})
	assert.True(t, CheckGroup(insider, GroupView, withInsider))
}

func TestCheckGroup_NilInputs(t *testing.T) {
	assert.False(t, CheckGroup(nil, GroupView, groupWith()))
	assert.False(t, CheckGroup(memberWith(), GroupView, nil))
}

func TestCanManageGroups(t *testing.T) {
	assert.True(t, CanManageGroups(admin()))
	assert.True(t, CanManageGroups(&models.Identity{Role: models.RoleGroupManager}))
	assert.False(t, CanManageGroups(memberWith(models.PermManageGroups)))
	assert.False(t, CanManageGroups(nil))
}

func TestDenied_MessageTemplate(t *testing.T) {
	err := Denied(GroupDelete)
	assert.EqualError(t, err, "You do not have permission to delete this group")
}
