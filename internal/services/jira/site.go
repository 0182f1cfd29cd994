package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// accessibleResource is one entry from the accessible-resources
// endpoint: a cloud site the token can act on.
type accessibleResource struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// resolveSite binds the session to a cloud site id and rewrites the
// API base to the gateway form. Resolution failure is logged and
// swallowed: the session stays usable with its previous API base.
func (c *Client) resolveSite(ctx context.Context) {
	c.mu.RLock()
	accessToken := c.accessToken
	c.mu.RUnlock()

	if accessToken == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourcesURL, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to build accessible-resources request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to fetch accessible resources")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("Accessible resources request failed")
		return
	}

	var resources []accessibleResource
	if err := json.NewDecoder(resp.Body).Decode(&resources); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to decode accessible resources")
		return
	}
	if len(resources) == 0 {
		c.logger.Warn().Msg("No accessible Jira sites for this token")
		return
	}

	// Prefer the site matching the configured base URL; fall back to
	// the first site the token can reach.
	want := strings.TrimSuffix(c.cfg.BaseURL, "/")
	selected := resources[0]
	for _, r := range resources {
		if strings.TrimSuffix(r.URL, "/") == want {
			selected = r
			break
		}
	}

	c.mu.Lock()
	c.siteID = selected.ID
	c.apiBase = fmt.Sprintf("https://api.atlassian.com/ex/jira/%s/rest/api/3", selected.ID)
	c.mu.Unlock()

	c.logger.Info().
		Str("site_id", selected.ID).
		Str("site_url", selected.URL).
		Msg("Bound Jira cloud site")
}
