package handlers

import (
	"encoding/json"
	"net/http"

	"lumina/internal/middleware"
	"lumina/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the bridge listens on loopback only
	},
}

// WebSocketHandler streams view events to the shell
type WebSocketHandler struct {
	hub           *services.WSHub
	session       *services.SessionService
	alerts        *services.AlertService
	conversations *services.ConversationService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	session *services.SessionService,
	alerts *services.AlertService,
	conversations *services.ConversationService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		session:       session,
		alerts:        alerts,
		conversations: conversations,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	identity, ok := middleware.Authorize(h.session, token)
	if !ok {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	id := h.hub.Register(conn)
	defer h.hub.Unregister(id)

	if err := h.hub.Send(id, services.WSMessage{Type: services.EventSessionChanged, Data: identity}); err != nil {
		log.Error().Err(err).Str("conn_id", id).Msg("Failed to send session state")
		return
	}
	if err := h.hub.Send(id, services.WSMessage{Type: services.EventAlertsUpdated, Data: h.alerts.State()}); err != nil {
		log.Error().Err(err).Str("conn_id", id).Msg("Failed to send alerts")
		return
	}

	log.Info().Str("conn_id", id).Str("user_id", identity.ID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("conn_id", id).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("conn_id", id).Msg("Failed to parse WebSocket message")
			h.sendError(id, "Invalid message format")
			continue
		}

		h.handleMessage(id, msg)
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(id string, msg services.WSMessage) {
	switch msg.Type {
	case "ping":
		if err := h.hub.Send(id, services.WSMessage{Type: "pong", Timestamp: msg.Timestamp}); err != nil {
			log.Error().Err(err).Str("conn_id", id).Msg("Failed to send pong")
		}
	case "mark_alerts_read":
		h.alerts.MarkAllRead()
	case "close_conversation":
		h.conversations.Close()
	default:
		h.sendError(id, "Unknown message type")
	}
}

// sendError sends an error message to one connection
func (h *WebSocketHandler) sendError(id, message string) {
	if err := h.hub.Send(id, services.WSMessage{Type: "error", Message: message}); err != nil {
		log.Error().Err(err).Str("conn_id", id).Msg("Failed to send error message")
	}
}
