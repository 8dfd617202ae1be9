package services

import (
	"context"
	"strings"
	"testing"

	"lumina/internal/ai"

	"github.com/stretchr/testify/assert"
)

func TestStudioService_Caption(t *testing.T) {
	gen := &fakeGenerator{text: "Golden hour ✨ #sunset #vibes"}
	svc := NewStudioService(gen, gen, nil, viewerOf("u1", "nova"))
	ctx := context.Background()

	assert.Equal(t, "Golden hour ✨ #sunset #vibes", svc.Caption(ctx, "sunset"))
	assert.True(t, strings.Contains(gen.prompts[0], "User context/keywords: sunset."))

	gen.text, gen.textErr = "", ai.ErrNoContent
	assert.Equal(t, CaptionFallbackEmpty, svc.Caption(ctx, "x"))

	gen.textErr = errBoom
	assert.Equal(t, CaptionFallbackError, svc.Caption(ctx, "x"))

	gen.text, gen.textErr = "   ", nil
	assert.Equal(t, CaptionFallbackEmpty, svc.Caption(ctx, "x"))
}

func TestStudioService_MagicImage(t *testing.T) {
	img := &ai.Image{MimeType: "image/png", Data: []byte{1, 2, 3}}
	ctx := context.Background()

	inline := NewStudioService(nil, &fakeGenerator{image: img}, nil, viewerOf("u1", "nova"))
	assert.Equal(t, img.DataURL(), inline.MagicImage(ctx, "fox"))

	media := &fakeMedia{}
	stored := NewStudioService(nil, &fakeGenerator{image: img}, media, viewerOf("u1", "nova"))
	assert.Equal(t, "https://cdn.example/u1/generated.png", stored.MagicImage(ctx, "fox"))
	assert.Equal(t, "u1", media.owner)

	media.err = errBoom
	assert.Equal(t, img.DataURL(), stored.MagicImage(ctx, "fox"))

	failing := NewStudioService(nil, &fakeGenerator{imgErr: errBoom}, media, viewerOf("u1", "nova"))
	assert.Empty(t, failing.MagicImage(ctx, "fox"))

	empty := NewStudioService(nil, &fakeGenerator{}, media, viewerOf("u1", "nova"))
	assert.Empty(t, empty.MagicImage(ctx, "fox"))
}
