package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/services/scheduler"
	"github.com/ternarybob/tessera/internal/services/status"
)

// StatusHandler serves health and version endpoints.
type StatusHandler struct {
	statusService    *status.Service
	schedulerService *scheduler.Service
	logger           arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(statusService *status.Service, schedulerService *scheduler.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService:    statusService,
		schedulerService: schedulerService,
		logger:           logger,
	}
}

// HealthHandler handles GET /health, a liveness probe that does not
// touch dependencies.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}

// ReadyHandler handles GET /ready. It reports 503 when a dependency
// is unhealthy.
func (h *StatusHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	health := h.statusService.Check(r.Context())
	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	WriteJSON(w, statusCode, health)
}

// ComprehensiveHealthHandler handles GET /health/comprehensive,
// probing every dependency now and including scheduler job state.
func (h *StatusHandler) ComprehensiveHealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	health := h.statusService.Probe(r.Context())
	response := map[string]interface{}{
		"healthy":    health.Healthy,
		"components": health.Components,
		"checked_at": health.CheckedAt,
		"version":    common.GetFullVersion(),
	}
	if h.schedulerService != nil {
		response["jobs"] = h.schedulerService.GetJobStatuses()
	}

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	WriteJSON(w, statusCode, response)
}

// VersionHandler handles GET /api/version.
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// TriggerJobHandler handles POST /api/jobs/trigger, running a
// registered background job immediately.
func (h *StatusHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if h.schedulerService == nil || !h.schedulerService.IsRunning() {
		WriteError(w, http.StatusConflict, "scheduler is not running")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "job name is required")
		return
	}

	if err := h.schedulerService.TriggerJob(name); err != nil {
		h.logger.Warn().Err(err).Str("job", name).Msg("Job trigger rejected")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Info().Str("job", name).Msg("Job triggered manually")
	WriteSuccess(w, "job "+name+" triggered")
}

// NotFoundHandler is the fallback for unmatched API routes.
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "endpoint not found")
}
