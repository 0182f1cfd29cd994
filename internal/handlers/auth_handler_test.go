package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// stubJiraService implements interfaces.JiraService for handler tests.
type stubJiraService struct {
	authenticated bool
	siteID        string
	exchangeErr   error
	exchanged     []string
}

func (s *stubJiraService) AuthorizationURL(state string) string {
	return "https://auth.atlassian.example/authorize?state=" + state
}

func (s *stubJiraService) ExchangeCode(ctx context.Context, code string) error {
	if s.exchangeErr != nil {
		return s.exchangeErr
	}
	s.exchanged = append(s.exchanged, code)
	s.authenticated = true
	return nil
}

func (s *stubJiraService) Refresh(ctx context.Context) error { return nil }
func (s *stubJiraService) IsAuthenticated() bool             { return s.authenticated }
func (s *stubJiraService) SiteID() string                    { return s.siteID }
func (s *stubJiraService) Ping(ctx context.Context) error    { return nil }

func (s *stubJiraService) CreateTicket(ctx context.Context, data *models.TicketData) *models.TicketResult {
	return &models.TicketResult{Success: true, Key: "PROJ-1"}
}

func (s *stubJiraService) AttachFile(ctx context.Context, issueKey, filePath string) error {
	return nil
}

func (s *stubJiraService) GetProject(ctx context.Context, key string) (map[string]interface{}, error) {
	return map[string]interface{}{"key": key}, nil
}

// recordingEvents captures published events.
type recordingEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (e *recordingEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (e *recordingEvents) Publish(ctx context.Context, event interfaces.Event) error {
	return e.PublishSync(ctx, event)
}

func (e *recordingEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEvents) Close() error { return nil }

func (e *recordingEvents) types() []interfaces.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]interfaces.EventType, 0, len(e.events))
	for _, event := range e.events {
		types = append(types, event.Type)
	}
	return types
}

func newTestAuthHandler(jiraService *stubJiraService) (*AuthHandler, *recordingEvents) {
	events := &recordingEvents{}
	return NewAuthHandler(jiraService, events, arbor.NewLogger()), events
}

func TestStartAuthRedirectsToProvider(t *testing.T) {
	h, _ := newTestAuthHandler(&stubJiraService{})

	rec := httptest.NewRecorder()
	h.StartAuthHandler(rec, httptest.NewRequest("GET", "/auth/jira", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "https://auth.atlassian.example/authorize?state=")

	h.mu.Lock()
	assert.Len(t, h.states, 1)
	h.mu.Unlock()
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	h, events := newTestAuthHandler(&stubJiraService{})

	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest("GET", "/auth/callback?code=abc123&state=nope", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown or has expired")
	assert.Empty(t, events.types())
}

func TestCallbackRejectsExpiredState(t *testing.T) {
	h, _ := newTestAuthHandler(&stubJiraService{})

	h.mu.Lock()
	h.states["stale"] = time.Now().Add(-time.Minute)
	h.mu.Unlock()

	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest("GET", "/auth/callback?code=abc123&state=stale", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackRequiresCode(t *testing.T) {
	h, _ := newTestAuthHandler(&stubJiraService{})

	h.mu.Lock()
	h.states["pending"] = time.Now().Add(time.Minute)
	h.mu.Unlock()

	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest("GET", "/auth/callback?state=pending", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No authorization code")
}

func TestCallbackExchangesCode(t *testing.T) {
	jiraService := &stubJiraService{siteID: "site-1"}
	h, events := newTestAuthHandler(jiraService)

	h.mu.Lock()
	h.states["pending"] = time.Now().Add(time.Minute)
	h.mu.Unlock()

	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest("GET", "/auth/callback?code=abc123&state=pending", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization complete")
	assert.Equal(t, []string{"abc123"}, jiraService.exchanged)
	assert.Equal(t, []interfaces.EventType{interfaces.EventAuthUpdated}, events.types())

	// State is single use.
	rec = httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest("GET", "/auth/callback?code=abc123&state=pending", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackReportsProviderError(t *testing.T) {
	h, events := newTestAuthHandler(&stubJiraService{})

	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest("GET", "/auth/callback?error=access_denied", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
	assert.Empty(t, events.types())
}

func TestAuthStatus(t *testing.T) {
	h, _ := newTestAuthHandler(&stubJiraService{authenticated: true, siteID: "site-1"})

	rec := httptest.NewRecorder()
	h.GetAuthStatusHandler(rec, httptest.NewRequest("GET", "/api/auth/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "site-1", body["site_id"])
}
