// Package jira provides an OAuth 2.0 authenticated Jira client
// covering both Cloud and Data Center deployments.
package jira

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

const (
	// ServiceName keys the credential record in the token store.
	ServiceName = "jira"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	accessibleResourcesURL = "https://api.atlassian.com/oauth/token/accessible-resources"
)

// Client is an OAuth-authenticated Jira API client. Session state
// (tokens, bound site) is guarded by mu; refreshMu collapses
// concurrent refresh attempts into one token-endpoint call.
type Client struct {
	cfg        common.JiraConfig
	deployment Deployment
	oauth      *oauth2.Config
	httpClient *http.Client
	store      interfaces.TokenStore
	logger     arbor.ILogger

	resourcesURL string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	siteID       string
	apiBase      string

	refreshMu sync.Mutex
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Jira client for the configured base URL and
// hydrates any previously persisted session from the token store.
func NewClient(cfg common.JiraConfig, store interfaces.TokenStore, opts ...ClientOption) (*Client, error) {
	deployment := ResolveDeployment(cfg.BaseURL)

	timeout := DefaultTimeout
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil {
			timeout = d
		}
	}

	c := &Client{
		cfg:        cfg,
		deployment: deployment,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		logger:     common.GetLogger(),
		apiBase:    deployment.APIBase,

		resourcesURL: accessibleResourcesURL,

		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       deployment.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   deployment.AuthURL,
				TokenURL:  deployment.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if store != nil {
		if err := c.hydrate(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to load stored Jira credentials")
		}
	}

	return c, nil
}

// hydrate restores a persisted session so restarts do not force
// re-authorization.
func (c *Client) hydrate() error {
	record, err := c.store.Load(ServiceName)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	c.mu.Lock()
	c.accessToken = record.AccessToken
	c.refreshToken = record.RefreshToken
	c.siteID = record.SiteID
	if record.APIBase != "" {
		c.apiBase = record.APIBase
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("site_id", record.SiteID).
		Bool("has_refresh_token", record.RefreshToken != "").
		Msg("Restored Jira session from token store")

	return nil
}

// IsAuthenticated reports whether an access token is held.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken != ""
}

// SiteID returns the bound cloud site id, empty for Data Center.
func (c *Client) SiteID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.siteID
}

// Deployment returns the resolved deployment variant.
func (c *Client) Deployment() Deployment {
	return c.deployment
}

// setSession replaces the in-memory tokens.
func (c *Client) setSession(accessToken, refreshToken string) {
	c.mu.Lock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
	c.mu.Unlock()
}

// clearSession drops the in-memory session. The persisted record is
// left in place so operators can inspect what was rejected.
func (c *Client) clearSession() {
	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()
}

// persist writes the current session to the token store.
func (c *Client) persist() {
	if c.store == nil {
		return
	}

	c.mu.RLock()
	record := &models.CredentialRecord{
		AccessToken:  c.accessToken,
		RefreshToken: c.refreshToken,
		SiteID:       c.siteID,
		CloudURL:     strings.TrimSuffix(c.cfg.BaseURL, "/"),
		APIBase:      c.apiBase,
	}
	c.mu.RUnlock()

	if err := c.store.Save(ServiceName, record); err != nil {
		c.logger.Error().Err(err).Msg("Failed to persist Jira credentials")
	}
}

// oauthContext routes oauth2 token requests through the client's
// HTTP client so timeouts and tests apply to them too.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
