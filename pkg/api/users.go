package api

import (
	"context"
	"net/url"

	"github.com/parishops/flock/pkg/models"
)

// ChurchUsersAPI covers the application-user endpoints.
type ChurchUsersAPI struct {
	c *Client
}

func (u *ChurchUsersAPI) GetAll(ctx context.Context) ([]models.Identity, error) {
	var users []models.Identity
	if err := u.c.get(ctx, "/church-users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (u *ChurchUsersAPI) GetOne(ctx context.Context, id string) (*models.Identity, error) {
	var user models.Identity
	if err := u.c.get(ctx, "/church-users/"+id, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePermissions replaces a user's explicit permission set.
func (u *ChurchUsersAPI) UpdatePermissions(ctx context.Context, id string, permissions []string) error {
	body := map[string][]string{"permissions": permissions}
	return u.c.put(ctx, "/church-users/update-permissions/"+id, body, nil)
}

type userSearchResult struct {
	Users []models.Identity `json:"users"`
}

func (u *ChurchUsersAPI) Search(ctx context.Context, query, role string) ([]models.Identity, error) {
	q := url.Values{}
	q.Set("query", query)
	if role != "" {
		q.Set("role", role)
	}
	var result userSearchResult
	if err := u.c.get(ctx, "/church-users/search", q, &result); err != nil {
		return nil, err
	}
	return result.Users, nil
}
