package api

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"vox/store"
)

// Login exchanges credentials for a token pair. The endpoint speaks OAuth2
// password flow, so the body is form-encoded rather than JSON. On success
// the full pair lands in the store atomically.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out tokenResponse
	err := c.send(ctx, reqContext{method: http.MethodPost, path: EndpointLogin}, func(req *resty.Request) {
		req.SetFormData(map[string]string{
			"username": username,
			"password": password,
		})
	}, &out)
	if err != nil {
		return err
	}
	c.store.Write(store.TokenPair{Access: out.AccessToken, Refresh: out.RefreshToken})
	return nil
}

// Logout tells the server to revoke the session, then clears local state.
// The local clear happens even when the server call fails; a dead session
// on the server is its problem, not ours.
func (c *Client) Logout(ctx context.Context) error {
	err := c.send(ctx, reqContext{method: http.MethodPost, path: EndpointLogout}, nil, nil)
	c.store.Clear()
	return err
}

func (c *Client) Register(ctx context.Context, u UserCreate) (*User, error) {
	var out User
	err := c.send(ctx, reqContext{method: http.MethodPost, path: EndpointRegister}, func(req *resty.Request) {
		req.SetBody(u)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var out User
	err := c.send(ctx, reqContext{method: http.MethodGet, path: EndpointCurrentUser}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
