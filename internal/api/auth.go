package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Login exchanges credentials for a bearer token. The backend expects an
// OAuth2 password form; username may also be an email address.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	r := request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}

	var tok Token
	if err := c.do(ctx, r, &tok); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("login: %w", ErrEmptyToken)
	}

	return &tok, nil
}

// CurrentUser returns the user the bearer token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/auth/users/me", nil, &u); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &u, nil
}
