package client

import (
	"context"
	"net/http"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.AccessToken, error) {
	var tok model.AccessToken
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: creds, out: &tok, public: true})
	return tok, err
}

func (c *Client) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	var u model.User
	err := c.do(ctx, request{method: http.MethodPost, path: "/users", body: reg, out: &u, public: true})
	return u, err
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/me", out: &u})
	return u, err
}

func (c *Client) UpdateProfile(ctx context.Context, patch model.ProfilePatch) (model.User, error) {
	var u model.User
	err := c.do(ctx, request{method: http.MethodPatch, path: "/users/me", body: patch, out: &u})
	return u, err
}
