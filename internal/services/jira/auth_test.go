package jira

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationURLCloud(t *testing.T) {
	client := newTestClient(t, testCloudBase, nil)

	raw := client.AuthorizationURL("state-1")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "auth.atlassian.com", parsed.Host)
	assert.Equal(t, "/authorize", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "api.atlassian.com", q.Get("audience"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Contains(t, q.Get("scope"), "offline_access")
}

func TestAuthorizationURLDataCenter(t *testing.T) {
	client := newTestClient(t, testDCBase, nil)

	raw := client.AuthorizationURL("state-2")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "jira.internal.example.com", parsed.Host)
	assert.Equal(t, "/plugins/servlet/oauth/authorize", parsed.Path)

	q := parsed.Query()
	assert.Empty(t, q.Get("audience"))
	assert.Empty(t, q.Get("prompt"))
}

func TestAuthorizationURLGeneratesState(t *testing.T) {
	client := newTestClient(t, testCloudBase, nil)

	parsed, err := url.Parse(client.AuthorizationURL(""))
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.Query().Get("state"))
}

func TestExchangeCodeSuccess(t *testing.T) {
	var gotCode, gotGrant string

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotCode = r.Form.Get("code")
		gotGrant = r.Form.Get("grant_type")
		writeToken(w, "T1", "R1")
	})
	mux.HandleFunc("/resources", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"site-123","url":"https://yourcompany.atlassian.net","name":"yourcompany"}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := newMemoryTokenStore()
	client := newTestClient(t, testCloudBase, store)
	client.oauth.Endpoint.TokenURL = server.URL + "/oauth/token"
	client.resourcesURL = server.URL + "/resources"

	require.NoError(t, client.ExchangeCode(context.Background(), "abc123"))

	assert.Equal(t, "abc123", gotCode)
	assert.Equal(t, "authorization_code", gotGrant)
	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, "T1", client.accessToken)
	assert.Equal(t, "R1", client.refreshToken)
	assert.Equal(t, "site-123", client.SiteID())
	assert.Equal(t, "https://api.atlassian.com/ex/jira/site-123/rest/api/3", client.apiBase)

	// Session persisted for the next restart.
	record := store.records[ServiceName]
	require.NotNil(t, record)
	assert.Equal(t, "T1", record.AccessToken)
	assert.Equal(t, "R1", record.RefreshToken)
	assert.Equal(t, "site-123", record.SiteID)
}

func TestExchangeCodeProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testCloudBase, nil)
	client.oauth.Endpoint.TokenURL = server.URL

	err := client.ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)

	var exchangeErr *ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusBadRequest, exchangeErr.Status)
	assert.Contains(t, exchangeErr.Body, "invalid_grant")
	assert.False(t, client.IsAuthenticated())
}

func TestExchangeCodeTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // force connection refused

	client := newTestClient(t, testCloudBase, nil)
	client.oauth.Endpoint.TokenURL = server.URL

	err := client.ExchangeCode(context.Background(), "abc123")
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestRefreshRotatesTokens(t *testing.T) {
	var gotGrant, gotRefresh string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotGrant = r.Form.Get("grant_type")
		gotRefresh = r.Form.Get("refresh_token")
		writeToken(w, "T2", "R2")
	}))
	defer server.Close()

	store := newMemoryTokenStore()
	client := newTestClient(t, testDCBase, store)
	client.oauth.Endpoint.TokenURL = server.URL
	client.setSession("T1", "R1")

	require.NoError(t, client.Refresh(context.Background()))

	assert.Equal(t, "refresh_token", gotGrant)
	assert.Equal(t, "R1", gotRefresh)
	assert.Equal(t, "T2", client.accessToken)
	assert.Equal(t, "R2", client.refreshToken)
	assert.Equal(t, "T2", store.records[ServiceName].AccessToken)
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "T2", "") // provider omits refresh_token
	}))
	defer server.Close()

	client := newTestClient(t, testDCBase, newMemoryTokenStore())
	client.oauth.Endpoint.TokenURL = server.URL
	client.setSession("T1", "R1")

	require.NoError(t, client.Refresh(context.Background()))

	assert.Equal(t, "T2", client.accessToken)
	assert.Equal(t, "R1", client.refreshToken)
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	client := newTestClient(t, testDCBase, nil)
	client.setSession("T1", "")

	err := client.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRefreshRejectionClearsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"revoked"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testDCBase, newMemoryTokenStore())
	client.oauth.Endpoint.TokenURL = server.URL
	client.setSession("T1", "R1")

	err := client.Refresh(context.Background())
	require.Error(t, err)

	var refreshErr *RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, http.StatusForbidden, refreshErr.Status)
	assert.False(t, client.IsAuthenticated())
}

func TestRefreshTransportFailureKeepsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, testDCBase, newMemoryTokenStore())
	client.oauth.Endpoint.TokenURL = server.URL
	client.setSession("T1", "R1")

	err := client.Refresh(context.Background())
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)

	// Prior tokens survive a network blip.
	assert.Equal(t, "T1", client.accessToken)
	assert.Equal(t, "R1", client.refreshToken)
}

func TestConcurrentRefreshSingleFlight(t *testing.T) {
	var tokenHits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&tokenHits, 1)
		writeToken(w, "fresh", "R2")
	}))
	defer server.Close()

	client := newTestClient(t, testDCBase, newMemoryTokenStore())
	client.oauth.Endpoint.TokenURL = server.URL
	client.setSession("stale", "R1")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.refreshIfStale(context.Background(), "stale")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&tokenHits), "concurrent refreshes must collapse into one token request")
	assert.Equal(t, "fresh", client.accessToken)
}
