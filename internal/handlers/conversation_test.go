package handlers

import (
	"net/http"
	"testing"
	"time"

	"lumina/internal/models"
	"lumina/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversationRouter(t *testing.T, messages *messageStore, viewer *sessionStub) chi.Router {
	t.Helper()
	profiles := &profileStore{profiles: []models.Identity{
		{ID: "u1", Username: "nova", FullName: "Nova Lee"},
		{ID: "u2", Username: "mira", FullName: "Mira Sol"},
	}}
	conversations := services.NewConversationService(messages, profiles, viewer, services.NewAlertService(nil), nil)
	h := NewConversationHandler(conversations)

	r := chi.NewRouter()
	r.Get("/conversations", h.ListConversations)
	r.Get("/conversations/open", h.Transcript)
	r.Delete("/conversations/open", h.Close)
	r.Get("/conversations/{peer_id}", h.Open)
	r.Post("/conversations/{peer_id}/messages", h.Send)
	return r
}

func TestConversationHandler_OpenAndSend(t *testing.T) {
	messages := &messageStore{messages: []models.Message{{
		ID: "m1", SenderID: "u2", ReceiverID: "u1", Text: "hi", CreatedAt: time.Now().Add(-time.Minute),
	}}}
	viewer := &sessionStub{identity: &models.Identity{ID: "u1", Username: "nova"}}
	r := newConversationRouter(t, messages, viewer)

	var peers struct {
		Conversations []models.Identity `json:"conversations"`
	}
	rec := do(t, r, http.MethodGet, "/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &peers)
	require.Len(t, peers.Conversations, 1)
	assert.Equal(t, "mira", peers.Conversations[0].Username)

	var transcript services.Transcript
	rec = do(t, r, http.MethodGet, "/conversations/u2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &transcript)
	assert.Equal(t, "u2", transcript.PeerID)
	require.Len(t, transcript.Messages, 1)

	var msg models.Message
	rec = do(t, r, http.MethodPost, "/conversations/u2/messages", `{"text":"hey you"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &msg)
	assert.Equal(t, "u1", msg.SenderID)
	assert.Equal(t, "u2", msg.ReceiverID)

	decode(t, do(t, r, http.MethodGet, "/conversations/open", ""), &transcript)
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, []string{"m1", "m2"}, []string{transcript.Messages[0].ID, transcript.Messages[1].ID})

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/conversations/open", "").Code)
	decode(t, do(t, r, http.MethodGet, "/conversations/open", ""), &transcript)
	assert.Empty(t, transcript.PeerID)
	assert.Empty(t, transcript.Messages)
}

func TestConversationHandler_DroppedSendIsAccepted(t *testing.T) {
	messages := &messageStore{}
	viewer := &sessionStub{identity: &models.Identity{ID: "u1", Username: "nova"}}
	r := newConversationRouter(t, messages, viewer)

	require.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/conversations/u2", "").Code)

	messages.failNext = true
	rec := do(t, r, http.MethodPost, "/conversations/u2/messages", `{"text":"lost"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/conversations/u2/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var transcript services.Transcript
	decode(t, do(t, r, http.MethodGet, "/conversations/open", ""), &transcript)
	assert.Empty(t, transcript.Messages)
	assert.Empty(t, messages.messages)
}

func TestConversationHandler_Errors(t *testing.T) {
	viewer := &sessionStub{}
	r := newConversationRouter(t, &messageStore{}, viewer)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/conversations/u2/messages", `nope`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/conversations/u2", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPost, "/conversations/u2/messages", `{"text":"hi"}`).Code)
}
