package services

import (
	"context"
	"errors"
	"time"

	"lumina/internal/ai"
	"lumina/internal/auth"
	"lumina/internal/models"
)

var (
	ErrInvalidMobile      = errors.New("mobile number must contain at least 10 digits")
	ErrInvalidName        = errors.New("full name is required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrPostNotFound       = errors.New("post not found")
	ErrEmptyText          = errors.New("text is required")
	ErrMissingImage       = errors.New("image is required")
)

// ProfileStore is the remote profiles collection
type ProfileStore interface {
	Create(ctx context.Context, p *models.Identity) error
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	Update(ctx context.Context, id string, u models.ProfileUpdate) error
	ListByIDs(ctx context.Context, ids []string) ([]models.Identity, error)
	ListExcept(ctx context.Context, excludeID string, limit int) ([]models.Identity, error)
	Search(ctx context.Context, term, excludeID string, limit int) ([]models.Identity, error)
}

// PostStore is the remote posts and post_likes collections
type PostStore interface {
	List(ctx context.Context) ([]models.Post, error)
	Create(ctx context.Context, userID, imageURL, caption string) (*models.Post, error)
	UpdateCaption(ctx context.Context, postID, userID, caption string) error
	Delete(ctx context.Context, postID, userID string) error
	LikedPostIDs(ctx context.Context, userID string) ([]string, error)
	Like(ctx context.Context, postID, userID string) error
	Unlike(ctx context.Context, postID, userID string) error
}

// CommentStore is the remote comments collection
type CommentStore interface {
	ListByPost(ctx context.Context, postID string) ([]models.Comment, error)
	Create(ctx context.Context, postID, userID, text string) (*models.Comment, error)
}

// StoryStore is the remote stories collection
type StoryStore interface {
	ListSince(ctx context.Context, since time.Time) ([]models.Story, error)
	Create(ctx context.Context, userID, imageURL string) (*models.Story, error)
}

// MessageStore is the remote messages collection
type MessageStore interface {
	Conversation(ctx context.Context, a, b string) ([]models.Message, error)
	ListTouching(ctx context.Context, userID string) ([]models.Message, error)
	Create(ctx context.Context, senderID, receiverID, text string) (*models.Message, error)
}

// AuthProvider is the remote password auth service
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// TokenVerifier resolves an access token to a user ID
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// PreferenceStore is the local key-value store
type PreferenceStore interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// TextGenerator produces caption text
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces images
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*ai.Image, error)
}

// MediaUploader stores image bytes and returns a public reference
type MediaUploader interface {
	Put(ctx context.Context, userID string, data []byte, contentType string) (string, error)
}

// Viewer exposes the currently authenticated identity
type Viewer interface {
	Current() *models.Identity
}

// Notifier pushes view events to the presentation shell
type Notifier interface {
	Publish(event string, data any)
}

// View events published to the shell
const (
	EventSessionChanged       = "session_changed"
	EventFeedUpdated          = "feed_updated"
	EventStoriesUpdated       = "stories_updated"
	EventTranscriptUpdated    = "transcript_updated"
	EventConversationsUpdated = "conversations_updated"
	EventAlertsUpdated        = "alerts_updated"
	EventDirectoryUpdated     = "directory_updated"
	EventThemeChanged         = "theme_changed"
)

type nopNotifier struct{}

func (nopNotifier) Publish(string, any) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
