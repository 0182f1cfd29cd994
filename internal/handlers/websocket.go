package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the frame sent to connected clients.
type WSMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// WebSocketHandler broadcasts ticket and health events to connected
// dashboard clients.
type WebSocketHandler struct {
	logger       arbor.ILogger
	eventService interfaces.EventService
	clients      map[*websocket.Conn]bool
	clientMutex  map[*websocket.Conn]*sync.Mutex
	mu           sync.RWMutex
}

// NewWebSocketHandler creates the handler and subscribes it to the
// event bus.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:       logger,
		eventService: eventService,
		clients:      make(map[*websocket.Conn]bool),
		clientMutex:  make(map[*websocket.Conn]*sync.Mutex),
	}

	if eventService != nil {
		h.subscribeToEvents()
	}

	return h
}

// HandleWebSocket handles GET /ws upgrade requests.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("clients", clientCount).Msg("WebSocket client connected")

	// Read loop exists only to detect disconnects; clients do not
	// send messages.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// subscribeToEvents forwards bus events to connected clients.
func (h *WebSocketHandler) subscribeToEvents() {
	forward := func(ctx context.Context, event interfaces.Event) error {
		h.broadcast(string(event.Type), event.Payload)
		return nil
	}

	for _, eventType := range []interfaces.EventType{
		interfaces.EventTicketSubmitted,
		interfaces.EventTicketCreated,
		interfaces.EventTicketFailed,
		interfaces.EventAuthUpdated,
		interfaces.EventHealthChanged,
	} {
		if err := h.eventService.Subscribe(eventType, forward); err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe WebSocket forwarder")
		}
	}
}

// broadcast sends a message to every connected client.
func (h *WebSocketHandler) broadcast(messageType string, payload interface{}) {
	msg := WSMessage{
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.mu.RLock()
		connMu := h.clientMutex[conn]
		h.mu.RUnlock()
		if connMu == nil {
			continue
		}

		connMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		connMu.Unlock()

		if err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
			h.removeClient(conn)
		}
	}
}

// removeClient unregisters and closes a connection.
func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Info().Int("clients", clientCount).Msg("WebSocket client disconnected")
}
