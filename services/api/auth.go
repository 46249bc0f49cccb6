package apisvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/school"
)

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds school.Credentials) (string, error) {
	var resp tokenResponse
	if err := c.Post(ctx, "/login", creds, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("login: empty token")
	}
	return resp.Token, nil
}

func (c *Client) Register(ctx context.Context, reg school.Registration) (school.User, error) {
	var usr school.User
	err := c.Post(ctx, "/register", reg, &usr)
	return usr, err
}

// Me resolves the identity of the current token.
func (c *Client) Me(ctx context.Context) (school.User, error) {
	var usr school.User
	err := c.Get(ctx, "/me", nil, &usr)
	return usr, err
}

// ResolveUser is a session.Resolver.
func (c *Client) ResolveUser(ctx context.Context, token string) (school.User, error) {
	return c.WithToken(token).Me(ctx)
}

func (c *Client) UpdateMe(ctx context.Context, upd school.ProfileUpdate) (school.User, error) {
	var usr school.User
	err := c.Put(ctx, "/me", upd, &usr)
	return usr, err
}

func (c *Client) ChangePassword(ctx context.Context, chg school.PasswordChange) error {
	return c.Post(ctx, "/api/settings/change-password", chg, nil)
}
