package handlers

import (
	"net/http"

	"lumina/internal/services"

	"github.com/go-chi/chi/v5"
)

// StoryHandler handles story HTTP requests
type StoryHandler struct {
	stories *services.StoryService
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(stories *services.StoryService) *StoryHandler {
	return &StoryHandler{stories: stories}
}

// CreateStoryRequest represents the request body for posting a story
type CreateStoryRequest struct {
	ImageURL string `json:"image_url"`
}

// GetStories handles GET /api/v1/stories
func (h *StoryHandler) GetStories(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		respondJSON(w, http.StatusOK, map[string]interface{}{"stories": h.stories.Refresh(r.Context())})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"stories": h.stories.Stories()})
}

// CreateStory handles POST /api/v1/stories
func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req CreateStoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	stories, err := h.stories.Post(r.Context(), req.ImageURL)
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"stories": stories})
}

// MarkViewed handles POST /api/v1/stories/{story_id}/viewed
func (h *StoryHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	h.stories.MarkViewed(chi.URLParam(r, "story_id"))
	w.WriteHeader(http.StatusNoContent)
}
