// Package ai wraps the generative language service used for caption
// suggestions and image synthesis.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrNoContent is returned when a response carries no usable part
var ErrNoContent = errors.New("model returned no content")

// ErrNotConfigured is returned by a client created without an API key
var ErrNotConfigured = errors.New("generative service is not configured")

const imageAspectRatio = "1:1"

// Image is a generated image
type Image struct {
	MimeType string
	Data     []byte
}

// DataURL renders the image as a data: URL
func (i *Image) DataURL() string {
	return "data:" + i.MimeType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Client calls generateContent on the configured models
type Client struct {
	models       *genai.Models
	captionModel string
	imageModel   string
}

// Options configures a Client
type Options struct {
	BaseURL      string
	APIKey       string
	CaptionModel string
	ImageModel   string
	Timeout      time.Duration
}

// NewClient creates a new generative client. Without an API key every call
// fails with ErrNotConfigured.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	c := &Client{captionModel: opts.CaptionModel, imageModel: opts.ImageModel}
	if opts.APIKey == "" {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = opts.BaseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.models = client.Models
	return c, nil
}

// GenerateText returns the text of the first candidate
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.models == nil {
		return "", ErrNotConfigured
	}
	resp, err := c.models.GenerateContent(ctx, c.captionModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", c.captionModel, err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// GenerateImage returns the first inline image of the response
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	if c.models == nil {
		return nil, ErrNotConfigured
	}
	resp, err := c.models.GenerateContent(ctx, c.imageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: imageAspectRatio},
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", c.imageModel, err)
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			return &Image{MimeType: p.InlineData.MIMEType, Data: p.InlineData.Data}, nil
		}
	}
	return nil, ErrNoContent
}
