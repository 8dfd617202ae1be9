package services

import (
	"context"
	"errors"
	"strings"

	"lumina/internal/ai"

	"github.com/rs/zerolog/log"
)

// Caption fallbacks
const (
	CaptionFallbackEmpty = "Just another day in paradise! ✨ #lifestyle"
	CaptionFallbackError = "Exploring new horizons! 🌍 #travel #adventure"
)

// StudioService wraps the generative service with fixed fallbacks
type StudioService struct {
	text   TextGenerator
	images ImageGenerator
	media  MediaUploader
	viewer Viewer
}

// NewStudioService creates a new studio service. media may be nil, in which
// case generated images are returned inline as data URLs.
func NewStudioService(text TextGenerator, images ImageGenerator, media MediaUploader, viewer Viewer) *StudioService {
	return &StudioService{text: text, images: images, media: media, viewer: viewer}
}

// Caption suggests a caption. It never fails.
func (s *StudioService) Caption(ctx context.Context, prompt string) string {
	full := "Create a creative, engaging social media caption for a post. User context/keywords: " +
		prompt + ". Keep it short, include 2-3 relevant hashtags and emojis."

	text, err := s.text.GenerateText(ctx, full)
	if errors.Is(err, ai.ErrNoContent) {
		return CaptionFallbackEmpty
	}
	if err != nil {
		log.Warn().Err(err).Msg("Caption generation failed")
		return CaptionFallbackError
	}
	if strings.TrimSpace(text) == "" {
		return CaptionFallbackEmpty
	}
	return text
}

// MagicImage generates an image and returns a reference to it, or an empty
// string when nothing usable came back
func (s *StudioService) MagicImage(ctx context.Context, prompt string) string {
	full := "Create a high-quality, artistic photo for a social media feed: " + prompt

	img, err := s.images.GenerateImage(ctx, full)
	if err != nil || img == nil || len(img.Data) == 0 {
		log.Warn().Err(err).Msg("Image generation returned nothing")
		return ""
	}

	if s.media != nil {
		owner := "anonymous"
		if me := s.viewer.Current(); me != nil {
			owner = me.ID
		}
		url, err := s.media.Put(ctx, owner, img.Data, img.MimeType)
		if err == nil {
			return url
		}
		log.Warn().Err(err).Msg("Failed to store generated image, returning it inline")
	}
	return img.DataURL()
}
