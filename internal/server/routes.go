package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// OAuth authorization flow
	mux.HandleFunc("/auth/jira", s.app.AuthHandler.StartAuthHandler)
	mux.HandleFunc("/auth/callback", s.app.AuthHandler.CallbackHandler)

	// Telegram webhook
	mux.HandleFunc("/webhook", s.app.WebhookHandler.UpdateHandler)

	// WebSocket event stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Health probes
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/ready", s.app.StatusHandler.ReadyHandler)
	mux.HandleFunc("/health/comprehensive", s.app.StatusHandler.ComprehensiveHealthHandler)

	// API routes
	mux.HandleFunc("/api/auth/status", s.app.AuthHandler.GetAuthStatusHandler)
	mux.HandleFunc("/api/tickets", s.app.TicketHandler.ListTicketsHandler)
	mux.HandleFunc("/api/ticket", s.app.TicketHandler.SubmitTicketHandler)
	mux.HandleFunc("/stats", s.app.TicketHandler.StatsHandler)
	mux.HandleFunc("/api/stats", s.app.TicketHandler.StatsHandler)
	mux.HandleFunc("/api/project", s.app.TicketHandler.ProjectHandler)
	mux.HandleFunc("/api/jobs/trigger", s.app.StatusHandler.TriggerJobHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}
