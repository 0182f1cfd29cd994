package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/bot"
)

// updateTimeout bounds processing of one Telegram update.
const updateTimeout = 2 * time.Minute

// WebhookHandler receives Telegram webhook updates.
type WebhookHandler struct {
	bot    *bot.Bot
	secret string
	logger arbor.ILogger
}

// NewWebhookHandler creates a new WebhookHandler. The secret, when
// set, must match Telegram's X-Telegram-Bot-Api-Secret-Token header.
func NewWebhookHandler(b *bot.Bot, secret string, logger arbor.ILogger) *WebhookHandler {
	return &WebhookHandler{
		bot:    b,
		secret: secret,
		logger: logger,
	}
}

// UpdateHandler handles POST /webhook. It always acknowledges valid
// requests immediately; processing happens in the background so
// Telegram does not redeliver slow updates.
func (h *WebhookHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if h.secret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != h.secret {
		h.logger.Warn().Str("remote", r.RemoteAddr).Msg("Webhook request with invalid secret token")
		WriteError(w, http.StatusForbidden, "invalid secret token")
		return
	}

	var update bot.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to decode webhook update")
		WriteError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		h.bot.HandleUpdate(ctx, &update)
	}()

	w.WriteHeader(http.StatusOK)
}
