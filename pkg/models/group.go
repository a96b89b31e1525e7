package models

import "time"

// Group membership roles. Membership role values are a closed set.
const (
	GroupRoleAdmin     = "admin"
	GroupRoleModerator = "moderator"
	GroupRoleMember    = "member"
)

// Group visibility values.
const (
	VisibilityPublic     = "public"
	VisibilityRestricted = "restricted"
	VisibilityPrivate    = "private"
)

// GroupMember is one user's membership record on a group.
type GroupMember struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Group is a small-group ministry. Subgroups share the shape, one level deep
// in practice. The server owns the entity; the client holds an invalidatable
// copy.
type Group struct {
	ID             string        `json:"_id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	VisibilityType string        `json:"visibilityType,omitempty"`
	Members        []GroupMember `json:"members,omitempty"`
	Subgroups      []Group       `json:"subgroups,omitempty"`
	Leaders        []Ref         `json:"leaders,omitempty"`
	CreatedAt      time.Time     `json:"createdAt,omitempty"`
	UpdatedAt      time.Time     `json:"updatedAt,omitempty"`
}

// Member returns the membership record for userID, or nil.
func (g *Group) Member(userID string) *GroupMember {
	if g == nil || userID == "" {
		return nil
	}
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// MemberRole returns userID's role in the group, or "" when not a member.
func (g *Group) MemberRole(userID string) string {
	if m := g.Member(userID); m != nil {
		return m.Role
	}
	return ""
}

// GroupStats is the aggregate view shown on the groups dashboard.
type GroupStats struct {
	TotalGroups  int `json:"totalGroups"`
	UserGroups   int `json:"userGroups"`
	ActiveGroups int `json:"activeGroups"`
	NewGroups    int `json:"newGroups"`
}

// GroupFilter narrows a fetch of all groups.
type GroupFilter struct {
	Search     string
	Visibility string
}
