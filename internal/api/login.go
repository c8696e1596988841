package api

import (
	"context"
	"fmt"
	"net/url"
)

// Login exchanges credentials for a bearer token and installs it on the
// session, so subsequent REST calls and stream connects are authenticated.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var token Token
	if err := c.postForm(ctx, "/api/v1/auth/token", form, &token); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := c.session.SetToken(token.AccessToken); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	c.logger.Info("logged in", "username", username, "tenant", token.TenantSlug)

	return &token, nil
}

// Logout drops the local session. The server keeps no session state.
func (c *Client) Logout() {
	c.session.Clear()
}
