package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"lumina/internal/ai"
	"lumina/internal/auth"
	"lumina/internal/models"
	"lumina/internal/prefs"
	"lumina/internal/repository"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newPrefs(t *testing.T) *prefs.Store {
	t.Helper()
	store, err := prefs.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type staticViewer struct {
	identity *models.Identity
}

func (v *staticViewer) Current() *models.Identity {
	if v.identity == nil {
		return nil
	}
	id := *v.identity
	return &id
}

func viewerOf(id, username string) *staticViewer {
	return &staticViewer{identity: &models.Identity{ID: id, Username: username, FullName: username}}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	last   map[string]any
}

func (n *recordingNotifier) Publish(event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if n.last == nil {
		n.last = make(map[string]any)
	}
	n.last[event] = data
}

func (n *recordingNotifier) payload(event string) any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last[event]
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

// fakeProfiles

type fakeProfiles struct {
	mu        sync.Mutex
	byID      map[string]models.Identity
	createErr error
	getErr    error
	block     bool
}

func newFakeProfiles(ids ...models.Identity) *fakeProfiles {
	f := &fakeProfiles{byID: make(map[string]models.Identity)}
	for _, id := range ids {
		f.byID[id.ID] = id
	}
	return f
}

func (f *fakeProfiles) Create(ctx context.Context, p *models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.byID[p.ID] = *p
	return nil
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("profile not found: %w", repository.ErrNotFound)
	}
	return &p, nil
}

func (f *fakeProfiles) Update(ctx context.Context, id string, u models.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.Avatar != nil {
		p.Avatar = *u.Avatar
	}
	f.byID[id] = p
	return nil
}

func (f *fakeProfiles) ListByIDs(ctx context.Context, ids []string) ([]models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Identity
	// reverse order so callers must reorder themselves
	for i := len(ids) - 1; i >= 0; i-- {
		if p, ok := f.byID[ids[i]]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) ListExcept(ctx context.Context, excludeID string, limit int) ([]models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Identity
	for _, p := range f.sorted() {
		if p.ID != excludeID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) Search(ctx context.Context, term, excludeID string, limit int) ([]models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	term = strings.ToLower(term)
	var out []models.Identity
	for _, p := range f.sorted() {
		if p.ID == excludeID || len(out) >= limit {
			continue
		}
		if strings.Contains(strings.ToLower(p.Username), term) || strings.Contains(strings.ToLower(p.FullName), term) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) sorted() []models.Identity {
	out := make([]models.Identity, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fakePosts behaves like the posts + post_likes tables

type fakePosts struct {
	mu          sync.Mutex
	posts       []models.Post
	owners      map[string]string
	likes       map[string]map[string]bool
	seq         int
	clock       time.Time
	likeCalls   int
	unlikeCalls int
	likeErr     error
	listErr     error
}

func newFakePosts() *fakePosts {
	return &fakePosts{
		owners: make(map[string]string),
		likes:  make(map[string]map[string]bool),
		clock:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakePosts) List(ctx context.Context) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := append([]models.Post(nil), f.posts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakePosts) Create(ctx context.Context, userID, imageURL, caption string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.clock = f.clock.Add(time.Minute)
	p := models.Post{
		ID:        fmt.Sprintf("p%d", f.seq),
		Author:    models.Identity{ID: userID, Username: "author_" + userID},
		ImageURL:  imageURL,
		Caption:   caption,
		CreatedAt: f.clock,
	}
	f.posts = append(f.posts, p)
	f.owners[p.ID] = userID
	return &p, nil
}

func (f *fakePosts) UpdateCaption(ctx context.Context, postID, userID, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.posts {
		if f.posts[i].ID == postID && f.owners[postID] == userID {
			f.posts[i].Caption = caption
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakePosts) Delete(ctx context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.posts {
		if f.posts[i].ID == postID && f.owners[postID] == userID {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakePosts) LikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for postID, users := range f.likes {
		if users[userID] {
			ids = append(ids, postID)
		}
	}
	return ids, nil
}

func (f *fakePosts) Like(ctx context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likeCalls++
	if f.likeErr != nil {
		return f.likeErr
	}
	if f.likes[postID] == nil {
		f.likes[postID] = make(map[string]bool)
	}
	if f.likes[postID][userID] {
		return nil
	}
	f.likes[postID][userID] = true
	f.bump(postID, 1)
	return nil
}

func (f *fakePosts) Unlike(ctx context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlikeCalls++
	if !f.likes[postID][userID] {
		return nil
	}
	delete(f.likes[postID], userID)
	f.bump(postID, -1)
	return nil
}

func (f *fakePosts) bump(postID string, delta int) {
	for i := range f.posts {
		if f.posts[i].ID == postID {
			f.posts[i].Likes = max(f.posts[i].Likes+delta, 0)
		}
	}
}

// fakeComments

type fakeComments struct {
	mu        sync.Mutex
	byPost    map[string][]models.Comment
	seq       int
	createErr error
}

func newFakeComments() *fakeComments {
	return &fakeComments{byPost: make(map[string][]models.Comment)}
}

func (f *fakeComments) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Comment(nil), f.byPost[postID]...), nil
}

func (f *fakeComments) Create(ctx context.Context, postID, userID, text string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	c := models.Comment{ID: fmt.Sprintf("c%d", f.seq), PostID: postID, UserID: userID, Text: text, CreatedAt: time.Now()}
	f.byPost[postID] = append(f.byPost[postID], c)
	return &c, nil
}

// fakeStories

type fakeStories struct {
	mu      sync.Mutex
	stories []models.Story
	clock   func() time.Time
	seq     int
}

func (f *fakeStories) ListSince(ctx context.Context, since time.Time) ([]models.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Story
	for _, s := range f.stories {
		if s.CreatedAt.After(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStories) Create(ctx context.Context, userID, imageURL string) (*models.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	s := models.Story{ID: fmt.Sprintf("s%d", f.seq), Author: models.Identity{ID: userID}, ImageURL: imageURL, CreatedAt: f.clock()}
	f.stories = append(f.stories, s)
	return &s, nil
}

// fakeMessages

type fakeMessages struct {
	mu          sync.Mutex
	msgs        []models.Message
	seq         int
	clock       time.Time
	createCalls int
	createErr   error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{clock: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeMessages) add(sender, receiver, text string) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(sender, receiver, text)
}

func (f *fakeMessages) insert(sender, receiver, text string) models.Message {
	f.seq++
	f.clock = f.clock.Add(time.Second)
	m := models.Message{ID: fmt.Sprintf("m%d", f.seq), SenderID: sender, ReceiverID: receiver, Text: text, CreatedAt: f.clock}
	f.msgs = append(f.msgs, m)
	return m
}

func (f *fakeMessages) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) ListTouching(ctx context.Context, userID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for i := len(f.msgs) - 1; i >= 0; i-- {
		m := f.msgs[i]
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) Create(ctx context.Context, senderID, receiverID, text string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	m := f.insert(senderID, receiverID, text)
	return &m, nil
}

// fakeAuth issues "token-<user id>" access tokens

type fakeAuth struct {
	mu           sync.Mutex
	users        map[string]fakeUser
	seq          int
	signUpCalls  int
	signInCalls  int
	signOutCalls int
	refreshErr   error
	bareSignUp   bool
	// refreshTTL, when set, makes Refresh rotate the access token
	refreshTTL   time.Duration
	refreshCalls int
}

type fakeUser struct {
	id       string
	password string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: make(map[string]fakeUser)}
}

func (f *fakeAuth) session(id, email string) *auth.Session {
	return &auth.Session{
		AccessToken:  "token-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         auth.User{ID: id, Email: email},
	}
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	if _, exists := f.users[email]; exists {
		return nil, &auth.APIError{Status: 422, Message: "User already registered"}
	}
	f.seq++
	u := fakeUser{id: fmt.Sprintf("00000000-0000-4000-8000-%012d", f.seq), password: password}
	f.users[email] = u
	if f.bareSignUp {
		return &auth.Session{User: auth.User{ID: u.id, Email: email}}, nil
	}
	return f.session(u.id, email), nil
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInCalls++
	u, ok := f.users[email]
	if !ok || u.password != password {
		return nil, &auth.APIError{Status: 400, Message: "Invalid login credentials"}
	}
	return f.session(u.id, email), nil
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	id := strings.TrimPrefix(refreshToken, "refresh-")
	sess := f.session(id, "")
	if f.refreshTTL > 0 {
		sess.AccessToken = fmt.Sprintf("token-%s-r%d", id, f.refreshCalls)
		sess.ExpiresAt = time.Now().Add(f.refreshTTL)
	}
	return sess, nil
}

func (f *fakeAuth) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return nil
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "token-")
	if !ok || id == "" {
		return "", errors.New("invalid token")
	}
	return id, nil
}

// fakeGenerator stands in for the generative service

type fakeGenerator struct {
	text    string
	textErr error
	image   *ai.Image
	imgErr  error
	prompts []string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.textErr
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (*ai.Image, error) {
	f.prompts = append(f.prompts, prompt)
	return f.image, f.imgErr
}

type fakeMedia struct {
	owner string
	err   error
}

func (f *fakeMedia) Put(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	f.owner = userID
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/" + userID + "/generated.png", nil
}
