package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Response carries the raw outcome of an API request. Non-2xx
// statuses are data, not errors: callers decide what a 404 or 400
// means for them.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do executes an authenticated API request against the bound API
// base. On a 401 with retryOnAuth set and a refresh token held, the
// token is refreshed once and the request retried exactly once.
func (c *Client) Do(ctx context.Context, method, endpoint string, body interface{}, params url.Values, retryOnAuth bool) (*Response, error) {
	c.mu.RLock()
	accessToken := c.accessToken
	refreshToken := c.refreshToken
	apiBase := c.apiBase
	c.mu.RUnlock()

	if accessToken == "" {
		return nil, ErrNotAuthenticated
	}

	reqURL := apiBase + endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Msg("Jira API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("%s %s", method, endpoint), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("read %s response", endpoint), Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && retryOnAuth && refreshToken != "" {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Msg("Access token expired, refreshing")

		if err := c.refreshIfStale(ctx, accessToken); err != nil {
			return nil, err
		}
		return c.Do(ctx, method, endpoint, body, params, false)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Header:     resp.Header,
	}, nil
}

// Ping probes the API with the current token without triggering a
// refresh. Used by health checks to distinguish expired auth from a
// down service.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.Do(ctx, http.MethodGet, "/serverInfo", nil, nil, false)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthenticated
	}
	if !resp.OK() {
		return fmt.Errorf("serverInfo returned status %d", resp.StatusCode)
	}
	return nil
}
