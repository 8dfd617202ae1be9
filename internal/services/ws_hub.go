package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages the shell's WebSocket connections
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection and returns its ID
func (h *WSHub) Register(conn *websocket.Conn) string {
	id := uuid.New().String()

	h.mu.Lock()
	h.connections[id] = &wsClient{conn: conn}
	h.mu.Unlock()

	log.Info().Str("conn_id", id).Msg("WebSocket connection registered")
	return id
}

// Unregister removes a WebSocket connection
func (h *WSHub) Unregister(id string) {
	h.mu.Lock()
	client, exists := h.connections[id]
	delete(h.connections, id)
	h.mu.Unlock()

	if exists {
		client.conn.Close()
		log.Info().Str("conn_id", id).Msg("WebSocket connection unregistered")
	}
}

// Send sends a message to one connection
func (h *WSHub) Send(id string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[id]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("connection %s is not registered", id)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(id)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Publish broadcasts a view event to every connection
func (h *WSHub) Publish(event string, data any) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	message := WSMessage{
		Type:      event,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	for _, id := range ids {
		if err := h.Send(id, message); err != nil {
			log.Error().Err(err).Str("conn_id", id).Str("type", event).Msg("Failed to publish event")
		}
	}
}

// Count returns the number of open connections
func (h *WSHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close closes every connection
func (h *WSHub) Close() {
	h.mu.Lock()
	clients := h.connections
	h.connections = make(map[string]*wsClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
