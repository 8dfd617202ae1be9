package handlers

import (
	"net/http"

	"lumina/internal/models"
	"lumina/internal/services"

	"github.com/rs/zerolog/log"
)

// SessionHandler handles sign-up, sign-in and profile HTTP requests
type SessionHandler struct {
	session *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(session *services.SessionService) *SessionHandler {
	return &SessionHandler{session: session}
}

// LoginRequest represents the request body for signing in
type LoginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// SessionResponse is returned after a successful sign-in
type SessionResponse struct {
	Identity    *models.Identity `json:"identity"`
	AccessToken string           `json:"access_token"`
}

// Register handles POST /api/v1/auth/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, err := h.session.Register(r.Context(), req)
	if err != nil {
		log.Warn().Err(err).Msg("Registration failed")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	log.Info().Str("user_id", identity.ID).Msg("User registered")
	respondJSON(w, http.StatusCreated, SessionResponse{Identity: identity, AccessToken: h.session.AccessToken()})
}

// Login handles POST /api/v1/auth/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, err := h.session.Login(r.Context(), req.Mobile, req.Password)
	if err != nil {
		log.Warn().Err(err).Msg("Login failed")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{Identity: identity, AccessToken: h.session.AccessToken()})
}

// Logout handles POST /api/v1/auth/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Teardown(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Current handles GET /api/v1/session
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	identity := h.session.Current()
	if identity == nil {
		respondError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, identity)
}

// UpdateProfile handles PATCH /api/v1/profile
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, err := h.session.UpdateProfile(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update profile")
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, identity)
}
