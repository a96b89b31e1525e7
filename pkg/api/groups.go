package api

import (
	"context"
	"net/url"

	"github.com/parishops/flock/pkg/models"
)

// GroupsAPI covers the group endpoints, including members and subgroups.
type GroupsAPI struct {
	c *Client
}

func (g *GroupsAPI) GetAll(ctx context.Context, filter models.GroupFilter) ([]models.Group, error) {
	q := url.Values{}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.Visibility != "" {
		q.Set("visibility", filter.Visibility)
	}
	var groups []models.Group
	if err := g.c.get(ctx, "/groups", q, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (g *GroupsAPI) GetUserGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := g.c.get(ctx, "/groups/user", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (g *GroupsAPI) GetOne(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	if err := g.c.get(ctx, "/groups/"+id, nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (g *GroupsAPI) Create(ctx context.Context, data *models.Group) (*models.Group, error) {
	var created models.Group
	if err := g.c.post(ctx, "/groups", data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (g *GroupsAPI) Update(ctx context.Context, id string, data *models.Group) (*models.Group, error) {
	var updated models.Group
	if err := g.c.put(ctx, "/groups/"+id, data, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (g *GroupsAPI) Delete(ctx context.Context, id string) error {
	return g.c.delete(ctx, "/groups/"+id)
}

func (g *GroupsAPI) GetMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	if err := g.c.get(ctx, "/groups/"+groupID+"/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// AddMember adds userID to the group with the given membership role and
// returns the updated group.
func (g *GroupsAPI) AddMember(ctx context.Context, groupID, userID, role string) (*models.Group, error) {
	var updated models.Group
	body := map[string]string{"memberId": userID, "role": role}
	if err := g.c.post(ctx, "/groups/"+groupID+"/members", body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (g *GroupsAPI) RemoveMember(ctx context.Context, groupID, userID string) error {
	return g.c.delete(ctx, "/groups/"+groupID+"/members/"+userID)
}

func (g *GroupsAPI) GetSubgroups(ctx context.Context, groupID string) ([]models.Group, error) {
	var subgroups []models.Group
	if err := g.c.get(ctx, "/groups/"+groupID+"/subgroups", nil, &subgroups); err != nil {
		return nil, err
	}
	return subgroups, nil
}

func (g *GroupsAPI) CreateSubgroup(ctx context.Context, groupID string, data *models.Group) (*models.Group, error) {
	var created models.Group
	if err := g.c.post(ctx, "/groups/"+groupID+"/subgroups", data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (g *GroupsAPI) UpdateSubgroup(ctx context.Context, groupID, subgroupID string, data *models.Group) (*models.Group, error) {
	var updated models.Group
	if err := g.c.put(ctx, "/groups/"+groupID+"/subgroups/"+subgroupID, data, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (g *GroupsAPI) DeleteSubgroup(ctx context.Context, groupID, subgroupID string) error {
	return g.c.delete(ctx, "/groups/"+groupID+"/subgroups/"+subgroupID)
}

func (g *GroupsAPI) GetStats(ctx context.Context) (*models.GroupStats, error) {
	var stats models.GroupStats
	if err := g.c.get(ctx, "/groups/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
