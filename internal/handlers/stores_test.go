package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"lumina/internal/auth"
	"lumina/internal/models"
	"lumina/internal/prefs"
	"lumina/internal/repository"

	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend unavailable")

func openPrefs(t *testing.T) *prefs.Store {
	t.Helper()
	store, err := prefs.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type postStore struct {
	mu    sync.Mutex
	posts []models.Post
	liked map[string]bool
}

func (f *postStore) List(ctx context.Context) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.posts), nil
}

func (f *postStore) Create(ctx context.Context, userID, imageURL, caption string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := models.Post{
		ID:        fmt.Sprintf("p%d", len(f.posts)+1),
		Author:    models.Identity{ID: userID},
		ImageURL:  imageURL,
		Caption:   caption,
		CreatedAt: time.Now(),
	}
	f.posts = append([]models.Post{p}, f.posts...)
	return &p, nil
}

func (f *postStore) UpdateCaption(ctx context.Context, postID, userID, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.posts {
		if f.posts[i].ID == postID && f.posts[i].Author.ID == userID {
			f.posts[i].Caption = caption
		}
	}
	return nil
}

func (f *postStore) Delete(ctx context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = slices.DeleteFunc(f.posts, func(p models.Post) bool {
		return p.ID == postID && p.Author.ID == userID
	})
	return nil
}

func (f *postStore) LikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.liked {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *postStore) Like(ctx context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.liked == nil {
		f.liked = map[string]bool{}
	}
	f.liked[postID] = true
	return nil
}

func (f *postStore) Unlike(ctx context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.liked, postID)
	return nil
}

type commentStore struct {
	mu       sync.Mutex
	comments []models.Comment
	failNext bool
}

func (f *commentStore) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Comment{}
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *commentStore) Create(ctx context.Context, postID, userID, text string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errBackend
	}
	c := models.Comment{
		ID:        fmt.Sprintf("c%d", len(f.comments)+1),
		PostID:    postID,
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	f.comments = append(f.comments, c)
	return &c, nil
}

type messageStore struct {
	mu       sync.Mutex
	messages []models.Message
	failNext bool
}

func (f *messageStore) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *messageStore) ListTouching(ctx context.Context, userID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *messageStore) Create(ctx context.Context, senderID, receiverID, text string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errBackend
	}
	m := models.Message{
		ID:         fmt.Sprintf("m%d", len(f.messages)+1),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  time.Now(),
	}
	f.messages = append(f.messages, m)
	return &m, nil
}

type profileStore struct {
	mu       sync.Mutex
	profiles []models.Identity
}

func (f *profileStore) Create(ctx context.Context, p *models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, *p)
	return nil
}

func (f *profileStore) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
}

func (f *profileStore) Update(ctx context.Context, id string, u models.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.profiles {
		if f.profiles[i].ID != id {
			continue
		}
		if u.FullName != nil {
			f.profiles[i].FullName = *u.FullName
		}
		if u.Bio != nil {
			f.profiles[i].Bio = *u.Bio
		}
		return nil
	}
	return repository.ErrNotFound
}

func (f *profileStore) ListByIDs(ctx context.Context, ids []string) ([]models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Identity
	for _, p := range f.profiles {
		if slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *profileStore) ListExcept(ctx context.Context, excludeID string, limit int) ([]models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Identity
	for _, p := range f.profiles {
		if p.ID != excludeID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *profileStore) Search(ctx context.Context, term, excludeID string, limit int) ([]models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	term = strings.ToLower(term)
	var out []models.Identity
	for _, p := range f.profiles {
		if p.ID == excludeID || len(out) >= limit {
			continue
		}
		if strings.Contains(strings.ToLower(p.Username), term) || strings.Contains(strings.ToLower(p.FullName), term) {
			out = append(out, p)
		}
	}
	return out, nil
}

// authStub is an in-memory password auth service issuing "token-<id>" tokens
type authStub struct {
	mu       sync.Mutex
	accounts map[string]string
	ids      map[string]string
	signOuts []string
}

func (f *authStub) session(email string) *auth.Session {
	id := f.ids[email]
	return &auth.Session{
		AccessToken:  "token-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         auth.User{ID: id, Email: email},
	}
}

func (f *authStub) SignUp(ctx context.Context, email, password string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accounts == nil {
		f.accounts, f.ids = map[string]string{}, map[string]string{}
	}
	if _, taken := f.accounts[email]; taken {
		return nil, &auth.APIError{Status: 422, Message: "User already registered"}
	}
	f.accounts[email] = password
	f.ids[email] = fmt.Sprintf("u%d", len(f.ids)+1)
	return f.session(email), nil
}

func (f *authStub) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.accounts[email]; !ok || pw != password {
		return nil, &auth.APIError{Status: 400, Message: "Invalid login credentials"}
	}
	return f.session(email), nil
}

func (f *authStub) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	return nil, &auth.APIError{Status: 400, Message: "Invalid Refresh Token"}
}

func (f *authStub) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, accessToken)
	return nil
}

type tokenVerifier struct{}

func (tokenVerifier) Verify(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "token-")
	if !ok || id == "" {
		return "", errors.New("malformed token")
	}
	return id, nil
}
