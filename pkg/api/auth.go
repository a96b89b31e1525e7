package api

import (
	"context"
	"errors"

	"github.com/parishops/flock/pkg/apperrors"
	"github.com/parishops/flock/pkg/models"
)

// AuthAPI covers the authentication endpoints.
type AuthAPI struct {
	c *Client
}

// loginResponse is the wire shape of a successful login.
type loginResponse struct {
	Token string           `json:"token"`
	User  *models.Identity `json:"user"`
	// Some deployments put the user id at the top level only.
	ID string `json:"_id"`
}

// Login exchanges credentials for an identity and a bearer token.
// Invalid credentials surface as an AuthError with the server's message.
func (a *AuthAPI) Login(ctx context.Context, username, password string) (*models.Identity, string, error) {
	var resp loginResponse
	err := a.c.post(ctx, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		var apiErr *apperrors.APIError
		if errors.As(err, &apiErr) {
			return nil, "", &apperrors.AuthError{Message: apiErr.Message}
		}
		return nil, "", err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, "", &apperrors.AuthError{Message: "Invalid response from server"}
	}
	if resp.User.ID == "" && resp.ID != "" {
		resp.User.ID = resp.ID
	}
	return resp.User, resp.Token, nil
}
