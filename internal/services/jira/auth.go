package jira

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// AuthorizationURL builds the provider authorization URL. An empty
// state gets a generated one.
func (c *Client) AuthorizationURL(state string) string {
	if state == "" {
		state = uuid.New().String()
	}

	var opts []oauth2.AuthCodeOption
	if c.deployment.Cloud {
		opts = append(opts,
			oauth2.SetAuthURLParam("audience", cloudAudience),
			oauth2.SetAuthURLParam("prompt", "consent"),
		)
	}

	return c.oauth.AuthCodeURL(state, opts...)
}

// ExchangeCode trades an authorization code for tokens, binds the
// session to a cloud site, and persists the credentials.
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	token, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			c.logger.Error().
				Int("status", status).
				Msg("Authorization code exchange rejected")
			return &ExchangeError{Status: status, Body: string(retrieveErr.Body)}
		}
		return &TransportError{Op: "code exchange", Err: err}
	}

	c.setSession(token.AccessToken, token.RefreshToken)

	if c.deployment.Cloud {
		c.resolveSite(ctx)
	}
	c.persist()

	c.logger.Info().
		Str("site_id", c.SiteID()).
		Bool("has_refresh_token", token.RefreshToken != "").
		Msg("Jira authorization complete")

	return nil
}

// Refresh obtains a new access token using the stored refresh token.
// Concurrent callers collapse into a single token-endpoint request.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.RLock()
	stale := c.accessToken
	c.mu.RUnlock()
	return c.refreshIfStale(ctx, stale)
}

// refreshIfStale refreshes the session unless another caller already
// replaced staleToken while this one waited on the guard.
func (c *Client) refreshIfStale(ctx context.Context, staleToken string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	current := c.accessToken
	refreshToken := c.refreshToken
	c.mu.RUnlock()

	if current != "" && current != staleToken {
		// A concurrent refresh already produced a fresh token.
		return nil
	}
	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	source := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			// The provider revoked or expired the grant; the session
			// cannot recover without re-authorization.
			c.clearSession()
			c.logger.Warn().
				Int("status", status).
				Msg("Refresh token rejected, re-authorization required")
			return &RefreshError{Status: status, Body: string(retrieveErr.Body)}
		}
		// Network failure: keep the prior tokens and let the caller retry.
		return &TransportError{Op: "token refresh", Err: err}
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		// Provider did not rotate the refresh token.
		newRefresh = refreshToken
	}
	c.setSession(token.AccessToken, newRefresh)

	if c.deployment.Cloud {
		c.resolveSite(ctx)
	}
	c.persist()

	c.logger.Debug().Msg("Jira access token refreshed")

	return nil
}
