// Package api is the HTTP client for the emotion-analysis backend. It owns
// bearer-token attachment, the transparent 401 refresh-and-replay cycle,
// and the typed wrappers for every endpoint the tool drives.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"vox/log"
	"vox/store"
)

const defaultTimeout = 60 * time.Second

type Client struct {
	base  string
	store store.Store

	// http carries the interceptors; refreshHTTP is a bare client so the
	// refresh call itself can never recurse into the 401 handler.
	http        *resty.Client
	refreshHTTP *resty.Client

	group     singleflight.Group
	onExpired func()
}

type Option func(*Client)

// WithSessionExpiredHook registers a callback fired once per expiry, after
// the local session has been cleared.
func WithSessionExpiredHook(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
		c.refreshHTTP.SetTimeout(d)
	}
}

func New(base string, st store.Store, opts ...Option) *Client {
	c := &Client{
		base:        strings.TrimRight(base, "/"),
		store:       st,
		http:        resty.New(),
		refreshHTTP: resty.New(),
	}
	c.http.SetBaseURL(c.base).SetTimeout(defaultTimeout)
	c.refreshHTTP.SetBaseURL(c.base).SetTimeout(defaultTimeout)
	c.http.OnBeforeRequest(c.authorize)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authorize attaches the bearer token to every request whose path is not in
// the exempt table. Missing tokens are not an error here; the server answers
// 401 and the refresh cycle takes it from there.
func (c *Client) authorize(_ *resty.Client, req *resty.Request) error {
	if IsExempt(req.URL) {
		return nil
	}
	if pair, ok := c.store.Read(); ok && pair.Access != "" {
		req.SetAuthToken(pair.Access)
	}
	return nil
}

// reqContext travels through send by value; the retried flag makes the
// replay decision without any shared mutable state.
type reqContext struct {
	method  string
	path    string
	retried bool
}

// send executes one request. On a 401 from a non-exempt path it runs the
// refresh handshake and replays the request exactly once; the rebuilt
// request goes back through build so body readers are fresh.
func (c *Client) send(ctx context.Context, rc reqContext, build func(*resty.Request), out any) error {
	req := c.http.R().SetContext(ctx)
	if out != nil {
		req.SetResult(out)
	}
	if build != nil {
		build(req)
	}

	start := time.Now()
	resp, err := req.Execute(rc.method, rc.path)
	if err != nil {
		log.Request(rc.method, rc.path, 0, rc.retried, time.Since(start))
		return &NetError{Err: err}
	}
	log.Request(rc.method, rc.path, resp.StatusCode(), rc.retried, time.Since(start))

	if !resp.IsError() {
		return nil
	}
	if resp.StatusCode() == 401 && !rc.retried && !IsExempt(rc.path) {
		if err := c.refreshSession(ctx); err != nil {
			return err
		}
		rc.retried = true
		return c.send(ctx, rc, build, out)
	}
	return &HTTPError{Status: resp.StatusCode(), Body: string(resp.Body())}
}
