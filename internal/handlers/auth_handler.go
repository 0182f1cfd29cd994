package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
)

// stateTTL bounds how long an authorization flow may take.
const stateTTL = 10 * time.Minute

// AuthHandler drives the Jira OAuth authorization flow.
type AuthHandler struct {
	jiraService  interfaces.JiraService
	eventService interfaces.EventService
	logger       arbor.ILogger

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(jiraService interfaces.JiraService, eventService interfaces.EventService, logger arbor.ILogger) *AuthHandler {
	return &AuthHandler{
		jiraService:  jiraService,
		eventService: eventService,
		logger:       logger,
		states:       make(map[string]time.Time),
	}
}

// StartAuthHandler handles GET /auth/jira and redirects the browser
// to the provider's authorization page.
func (h *AuthHandler) StartAuthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	state := uuid.New().String()

	h.mu.Lock()
	h.pruneStates()
	h.states[state] = time.Now().Add(stateTTL)
	h.mu.Unlock()

	authURL := h.jiraService.AuthorizationURL(state)
	h.logger.Info().Str("state", state).Msg("Starting Jira authorization flow")

	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackHandler handles GET /auth/callback, the provider redirect
// carrying the authorization code.
func (h *AuthHandler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		h.logger.Warn().
			Str("error", errCode).
			Str("description", query.Get("error_description")).
			Msg("Authorization denied by provider")
		writeCallbackPage(w, http.StatusBadRequest, "Authorization failed", fmt.Sprintf("The provider reported: %s", errCode))
		return
	}

	state := query.Get("state")
	if !h.consumeState(state) {
		h.logger.Warn().Str("state", state).Msg("Callback with unknown or expired state")
		writeCallbackPage(w, http.StatusBadRequest, "Authorization failed", "The authorization state is unknown or has expired. Please start again.")
		return
	}

	code := query.Get("code")
	if code == "" {
		writeCallbackPage(w, http.StatusBadRequest, "Authorization failed", "No authorization code was returned.")
		return
	}

	if err := h.jiraService.ExchangeCode(r.Context(), code); err != nil {
		h.logger.Error().Err(err).Msg("Authorization code exchange failed")
		writeCallbackPage(w, http.StatusBadGateway, "Authorization failed", "The token exchange was rejected. Check the server logs for details.")
		return
	}

	h.logger.Info().Str("site_id", h.jiraService.SiteID()).Msg("Jira authorization completed")

	// Synchronous so listeners see the auth flip before the page renders.
	h.eventService.PublishSync(r.Context(), interfaces.Event{
		Type:    interfaces.EventAuthUpdated,
		Payload: map[string]interface{}{"authenticated": true, "site_id": h.jiraService.SiteID()},
	})

	writeCallbackPage(w, http.StatusOK, "Authorization complete", "Tessera is now connected to Jira. You can close this window.")
}

// GetAuthStatusHandler handles GET /api/auth/status.
func (h *AuthHandler) GetAuthStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": h.jiraService.IsAuthenticated(),
		"site_id":       h.jiraService.SiteID(),
	})
}

// consumeState validates and removes a pending authorization state.
func (h *AuthHandler) consumeState(state string) bool {
	if state == "" {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	expiry, ok := h.states[state]
	if !ok {
		return false
	}
	delete(h.states, state)
	return time.Now().Before(expiry)
}

// pruneStates drops expired states. Caller holds the lock.
func (h *AuthHandler) pruneStates() {
	now := time.Now()
	for state, expiry := range h.states {
		if now.After(expiry) {
			delete(h.states, state)
		}
	}
}

func writeCallbackPage(w http.ResponseWriter, statusCode int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>", title, title, message)
}
