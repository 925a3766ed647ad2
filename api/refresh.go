package api

import (
	"context"
	"fmt"

	"vox/log"
	"vox/store"
)

// refreshSession exchanges the stored refresh token for a new pair. A burst
// of concurrent 401s collapses into a single handshake via singleflight;
// every caller shares its outcome, so the expiry hook fires at most once
// per burst.
func (c *Client) refreshSession(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		pair, ok := c.store.Read()
		if !ok || pair.Refresh == "" {
			c.expireSession()
			return nil, ErrSessionExpired
		}

		// Detached from the caller's deadline: the winning caller may be
		// cancelled while others still depend on this exchange.
		var out tokenResponse
		resp, err := c.refreshHTTP.R().
			SetContext(context.WithoutCancel(ctx)).
			SetBody(map[string]string{"refresh_token": pair.Refresh}).
			SetResult(&out).
			Post(EndpointTokenRefresh)
		// Any failure of the handshake itself ends the session; a transport
		// error is no more recoverable here than a rejected token.
		if err != nil {
			c.expireSession()
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		if resp.IsError() {
			c.expireSession()
			return nil, ErrSessionExpired
		}

		if out.RefreshToken == "" {
			// Server kept the old refresh token; don't drop it.
			out.RefreshToken = pair.Refresh
		}
		c.store.Write(store.TokenPair{Access: out.AccessToken, Refresh: out.RefreshToken})
		log.RefreshOutcome(true)
		return nil, nil
	})
	return err
}

// expireSession clears local credentials and notifies the UI. The order
// matters: by the time the hook runs, Read already reports no session.
func (c *Client) expireSession() {
	c.store.Clear()
	log.RefreshOutcome(false)
	if c.onExpired != nil {
		c.onExpired()
	}
}
