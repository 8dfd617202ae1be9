package handlers

import (
	"net/http"

	"lumina/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// CommunityHandler handles directory, search and follow HTTP requests
type CommunityHandler struct {
	community *services.CommunityService
}

// NewCommunityHandler creates a new community handler
func NewCommunityHandler(community *services.CommunityService) *CommunityHandler {
	return &CommunityHandler{community: community}
}

// Directory handles GET /api/v1/community
func (h *CommunityHandler) Directory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"users": h.community.Directory(r.Context())})
}

// Search handles GET /api/v1/community/search?q=
func (h *CommunityHandler) Search(w http.ResponseWriter, r *http.Request) {
	users := h.community.Search(r.Context(), r.URL.Query().Get("q"))
	respondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetUser handles GET /api/v1/users/{user_id}
func (h *CommunityHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.community.Profile(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// ToggleFollow handles POST /api/v1/users/{user_id}/follow
func (h *CommunityHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	following, err := h.community.ToggleFollow(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to toggle follow")
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"following": following})
}

// Following handles GET /api/v1/following
func (h *CommunityHandler) Following(w http.ResponseWriter, r *http.Request) {
	ids, err := h.community.Following(r.Context())
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"user_ids": ids})
}
