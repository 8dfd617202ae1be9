package handlers

import (
	"net/http"

	"lumina/internal/services"
)

// SettingsHandler handles display setting HTTP requests
type SettingsHandler struct {
	settings *services.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// ThemeRequest represents the theme body
type ThemeRequest struct {
	Theme string `json:"theme"`
}

// GetTheme handles GET /api/v1/settings/theme
func (h *SettingsHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.settings.Theme(r.Context())
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, ThemeRequest{Theme: theme})
}

// SetTheme handles PUT /api/v1/settings/theme
func (h *SettingsHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Theme != services.ThemeLight && req.Theme != services.ThemeDark {
		respondError(w, "theme must be light or dark", http.StatusBadRequest)
		return
	}
	if err := h.settings.SetTheme(r.Context(), req.Theme); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// ToggleTheme handles POST /api/v1/settings/theme/toggle
func (h *SettingsHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.settings.ToggleTheme(r.Context())
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, ThemeRequest{Theme: theme})
}
