package jira

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when an API call is attempted
// without an access token. The caller must run the authorization
// flow first.
var ErrNotAuthenticated = errors.New("not authenticated with jira")

// ErrNoRefreshToken is returned when a refresh is requested but no
// refresh token is held. Data Center flows without offline_access
// end up here once the access token expires.
var ErrNoRefreshToken = errors.New("no refresh token available")

// ExchangeError reports a provider rejection of the authorization
// code grant. The raw response is preserved for diagnostics.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.Status, e.Body)
}

// RefreshError reports a provider rejection of the refresh token
// grant. After this error the session is unauthenticated.
type RefreshError struct {
	Status int
	Body   string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed with status %d: %s", e.Status, e.Body)
}

// TransportError wraps a network-level failure. Unlike provider
// rejections it does not invalidate held tokens.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("jira %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
