package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/services/llm"
)

// defaultTicketLimit caps ticket history listings.
const defaultTicketLimit = 50

// TicketHandler serves ticket history and the development submission
// endpoint.
type TicketHandler struct {
	tickets     interfaces.TicketStorage
	jiraService interfaces.JiraService
	extractor   *llm.Extractor
	projectKey  string
	devMode     bool
	logger      arbor.ILogger
}

// NewTicketHandler creates a new TicketHandler. The direct submission
// endpoint is only active in dev mode.
func NewTicketHandler(tickets interfaces.TicketStorage, jiraService interfaces.JiraService, extractor *llm.Extractor, projectKey string, devMode bool, logger arbor.ILogger) *TicketHandler {
	return &TicketHandler{
		tickets:     tickets,
		jiraService: jiraService,
		extractor:   extractor,
		projectKey:  projectKey,
		devMode:     devMode,
		logger:      logger,
	}
}

// ListTicketsHandler handles GET /api/tickets.
func (h *TicketHandler) ListTicketsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := defaultTicketLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	records, err := h.tickets.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list tickets")
		WriteError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tickets": records,
		"count":   len(records),
	})
}

// StatsHandler handles GET /api/stats.
func (h *TicketHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.tickets.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read ticket stats")
		WriteError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// ProjectHandler handles GET /api/project, returning metadata for the
// configured Jira project.
func (h *TicketHandler) ProjectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	if !h.jiraService.IsAuthenticated() {
		WriteError(w, http.StatusUnauthorized, "Jira authorization has not been completed")
		return
	}

	project, err := h.jiraService.GetProject(r.Context(), h.projectKey)
	if err != nil {
		h.logger.Error().Err(err).Str("project_key", h.projectKey).Msg("Failed to fetch project")
		WriteError(w, http.StatusBadGateway, "failed to fetch project")
		return
	}

	WriteJSON(w, http.StatusOK, project)
}

// submitRequest is the dev submission payload.
type submitRequest struct {
	Text     string `json:"text"`
	Reporter string `json:"reporter,omitempty"`
}

// SubmitTicketHandler handles POST /api/ticket, a development-only
// path that runs extraction and submission without Telegram.
func (h *TicketHandler) SubmitTicketHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if !h.devMode {
		WriteError(w, http.StatusForbidden, "direct submission is only available in dev mode")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	if !h.jiraService.IsAuthenticated() {
		WriteError(w, http.StatusUnauthorized, "Jira authorization has not been completed")
		return
	}

	ticket := h.extractor.Extract(r.Context(), req.Text, req.Reporter)
	result := h.jiraService.CreateTicket(r.Context(), ticket)

	statusCode := http.StatusCreated
	if !result.Success {
		statusCode = http.StatusBadGateway
	}
	WriteJSON(w, statusCode, map[string]interface{}{
		"ticket": ticket,
		"result": result,
	})
}
