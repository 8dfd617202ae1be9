package handlers

import (
	"context"
	"net/http"

	"lumina/internal/media"
	"lumina/internal/middleware"
	"lumina/internal/services"

	"github.com/rs/zerolog/log"
)

// UploadPresigner hands out direct upload targets
type UploadPresigner interface {
	PresignUpload(ctx context.Context, userID, contentType string) (*media.Upload, error)
}

// StudioHandler handles caption, image generation and upload HTTP requests
type StudioHandler struct {
	studio  *services.StudioService
	uploads UploadPresigner
}

// NewStudioHandler creates a new studio handler. uploads may be nil when no
// media bucket is configured.
func NewStudioHandler(studio *services.StudioService, uploads UploadPresigner) *StudioHandler {
	return &StudioHandler{studio: studio, uploads: uploads}
}

// PromptRequest represents a generation request
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// UploadRequest represents a request for a pre-signed upload URL
type UploadRequest struct {
	ContentType string `json:"content_type"`
}

// Caption handles POST /api/v1/studio/caption
func (h *StudioHandler) Caption(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"caption": h.studio.Caption(r.Context(), req.Prompt)})
}

// MagicImage handles POST /api/v1/studio/image
func (h *StudioHandler) MagicImage(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"image_url": h.studio.MagicImage(r.Context(), req.Prompt)})
}

// Upload handles POST /api/v1/media/uploads
func (h *StudioHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		respondError(w, "media storage is not configured", http.StatusServiceUnavailable)
		return
	}

	var req UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	userID := middleware.GetUserID(r.Context())
	upload, err := h.uploads.PresignUpload(r.Context(), userID, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to generate pre-signed URL")
		respondError(w, "failed to generate upload URL", http.StatusInternalServerError)
		return
	}

	log.Info().Str("user_id", userID).Str("key", upload.Key).Msg("Pre-signed URL generated")
	respondJSON(w, http.StatusOK, upload)
}
