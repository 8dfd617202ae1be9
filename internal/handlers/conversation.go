package handlers

import (
	"net/http"

	"lumina/internal/services"

	"github.com/go-chi/chi/v5"
)

// ConversationHandler handles direct message HTTP requests
type ConversationHandler struct {
	conversations *services.ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Text string `json:"text"`
}

// ListConversations handles GET /api/v1/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	peers := h.conversations.ListConversations(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{"conversations": peers})
}

// Open handles GET /api/v1/conversations/{peer_id}
func (h *ConversationHandler) Open(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "peer_id")
	msgs, err := h.conversations.OpenWith(r.Context(), peerID)
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, services.Transcript{PeerID: peerID, Messages: msgs})
}

// Close handles DELETE /api/v1/conversations/open
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.conversations.Close()
	w.WriteHeader(http.StatusNoContent)
}

// Transcript handles GET /api/v1/conversations/open
func (h *ConversationHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.conversations.Transcript())
}

// Send handles POST /api/v1/conversations/{peer_id}/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.conversations.Send(r.Context(), chi.URLParam(r, "peer_id"), req.Text)
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}
