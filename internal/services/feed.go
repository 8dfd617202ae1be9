package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"lumina/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const commentFetchLimit = 8

// SavedKey returns the preference key of a viewer's saved post IDs
func SavedKey(userID string) string {
	return "lumina_saved_" + userID
}

// FeedService keeps the viewer's feed and applies optimistic like/save state
type FeedService struct {
	posts    PostStore
	comments CommentStore
	prefs    PreferenceStore
	viewer   Viewer
	alerts   *AlertService
	notifier Notifier

	mu    sync.Mutex
	items []models.Post
}

// NewFeedService creates a new feed service
func NewFeedService(
	posts PostStore,
	comments CommentStore,
	prefs PreferenceStore,
	viewer Viewer,
	alerts *AlertService,
	notifier Notifier,
) *FeedService {
	return &FeedService{
		posts:    posts,
		comments: comments,
		prefs:    prefs,
		viewer:   viewer,
		alerts:   alerts,
		notifier: orNop(notifier),
	}
}

// Posts returns a snapshot of the feed, newest first
func (s *FeedService) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePosts(s.items)
}

// Post returns one post from the current feed
func (s *FeedService) Post(postID string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(postID)
	if i < 0 {
		return nil, ErrPostNotFound
	}
	p := clonePosts(s.items[i : i+1])[0]
	return &p, nil
}

// Refresh reloads the whole feed. Read errors are logged and leave the
// previous feed in place.
func (s *FeedService) Refresh(ctx context.Context) []models.Post {
	me := s.viewer.Current()
	if me == nil {
		return nil
	}

	posts, err := s.posts.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load feed")
		return s.Posts()
	}

	liked := make(map[string]bool)
	ids, err := s.posts.LikedPostIDs(ctx, me.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", me.ID).Msg("Failed to load liked posts")
	}
	for _, id := range ids {
		liked[id] = true
	}

	saved := s.savedSet(ctx, me.ID)

	var g errgroup.Group
	g.SetLimit(commentFetchLimit)
	for i := range posts {
		p := &posts[i]
		p.Author = fillIdentity(p.Author, p.ID)
		p.IsLiked = liked[p.ID]
		p.IsSaved = saved[p.ID]
		if p.Likes < 0 {
			p.Likes = 0
		}
		g.Go(func() error {
			comments, err := s.comments.ListByPost(ctx, p.ID)
			if err != nil {
				log.Error().Err(err).Str("post_id", p.ID).Msg("Failed to load comments")
			}
			if comments == nil {
				comments = []models.Comment{}
			}
			p.Comments = comments
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.items = posts
	s.mu.Unlock()

	s.notifier.Publish(EventFeedUpdated, nil)
	return s.Posts()
}

// Like optimistically likes a post, then records it remotely. Liking an
// already liked post is a no-op.
func (s *FeedService) Like(ctx context.Context, postID string) error {
	return s.toggleLike(ctx, postID, true)
}

// Unlike optimistically removes a like, then records it remotely. Unliking a
// post that is not liked is a no-op.
func (s *FeedService) Unlike(ctx context.Context, postID string) error {
	return s.toggleLike(ctx, postID, false)
}

func (s *FeedService) toggleLike(ctx context.Context, postID string, like bool) error {
	me := s.viewer.Current()
	if me == nil {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	i := s.indexOf(postID)
	if i < 0 {
		s.mu.Unlock()
		return ErrPostNotFound
	}
	p := &s.items[i]
	if p.IsLiked == like {
		s.mu.Unlock()
		return nil
	}
	p.IsLiked = like
	if like {
		p.Likes++
	} else if p.Likes > 0 {
		p.Likes--
	}
	s.mu.Unlock()
	s.notifier.Publish(EventFeedUpdated, nil)

	// remote failures leave the optimistic state until the next refresh
	if like {
		if err := s.posts.Like(ctx, postID, me.ID); err != nil {
			log.Error().Err(err).Str("post_id", postID).Msg("Failed to like post")
		}
		s.alerts.Record(models.AlertLike, *me, AlertPayload{PostID: postID})
		return nil
	}
	if err := s.posts.Unlike(ctx, postID, me.ID); err != nil {
		log.Error().Err(err).Str("post_id", postID).Msg("Failed to unlike post")
	}
	return nil
}

// Save toggles a post in the viewer's local saved set and returns the new state
func (s *FeedService) Save(ctx context.Context, postID string) (bool, error) {
	me := s.viewer.Current()
	if me == nil {
		return false, ErrNotAuthenticated
	}

	ids, err := s.savedIDs(ctx, me.ID)
	if err != nil {
		return false, err
	}

	saved := true
	next := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id == postID {
			saved = false
			continue
		}
		next = append(next, id)
	}
	if saved {
		next = append(next, postID)
	}

	if err := s.prefs.Set(ctx, SavedKey(me.ID), next); err != nil {
		return false, fmt.Errorf("failed to save post: %w", err)
	}

	s.mu.Lock()
	if i := s.indexOf(postID); i >= 0 {
		s.items[i].IsSaved = saved
	}
	s.mu.Unlock()

	s.notifier.Publish(EventFeedUpdated, nil)
	return saved, nil
}

// SavedPosts returns the posts of the current feed the viewer saved
func (s *FeedService) SavedPosts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Post
	for _, p := range s.items {
		if p.IsSaved {
			out = append(out, p)
		}
	}
	return clonePosts(out)
}

// Create publishes a post and reloads the feed
func (s *FeedService) Create(ctx context.Context, imageRef, caption string) ([]models.Post, error) {
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(imageRef) == "" {
		return nil, ErrMissingImage
	}

	if _, err := s.posts.Create(ctx, me.ID, imageRef, caption); err != nil {
		log.Error().Err(err).Str("user_id", me.ID).Msg("Failed to create post")
	}
	return s.Refresh(ctx), nil
}

// UpdateCaption edits one of the viewer's posts and reloads the feed
func (s *FeedService) UpdateCaption(ctx context.Context, postID, caption string) ([]models.Post, error) {
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}

	if err := s.posts.UpdateCaption(ctx, postID, me.ID, caption); err != nil {
		log.Error().Err(err).Str("post_id", postID).Msg("Failed to update caption")
	}
	return s.Refresh(ctx), nil
}

// Delete removes one of the viewer's posts and reloads the feed
func (s *FeedService) Delete(ctx context.Context, postID string) ([]models.Post, error) {
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}

	if err := s.posts.Delete(ctx, postID, me.ID); err != nil {
		log.Error().Err(err).Str("post_id", postID).Msg("Failed to delete post")
	}
	return s.Refresh(ctx), nil
}

// Comments fetches the comments of a post, oldest first, and caches them on the feed
func (s *FeedService) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		log.Error().Err(err).Str("post_id", postID).Msg("Failed to load comments")
		p, perr := s.Post(postID)
		if perr != nil {
			return nil, perr
		}
		return p.Comments, nil
	}

	s.mu.Lock()
	if i := s.indexOf(postID); i >= 0 {
		s.items[i].Comments = append([]models.Comment(nil), comments...)
	}
	s.mu.Unlock()
	return comments, nil
}

// AddComment posts a comment and appends the confirmed row to the post
func (s *FeedService) AddComment(ctx context.Context, postID, text string) (*models.Comment, error) {
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	c, err := s.comments.Create(ctx, postID, me.ID, text)
	if err != nil {
		log.Error().Err(err).Str("post_id", postID).Msg("Failed to add comment")
		return nil, nil
	}
	c.Username = me.Username

	s.mu.Lock()
	if i := s.indexOf(postID); i >= 0 {
		s.items[i].Comments = append(s.items[i].Comments, *c)
	}
	s.mu.Unlock()

	s.alerts.Record(models.AlertComment, *me, AlertPayload{Text: text, PostID: postID})
	s.notifier.Publish(EventFeedUpdated, nil)
	return c, nil
}

// HandleChange reacts to any change on the posts table with a full refresh
func (s *FeedService) HandleChange(ctx context.Context, ev models.ChangeEvent) {
	log.Debug().Str("table", ev.Table).Str("type", ev.Type).Msg("Post change received")
	s.Refresh(ctx)
}

// Reset drops the feed
func (s *FeedService) Reset() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

func (s *FeedService) indexOf(postID string) int {
	for i := range s.items {
		if s.items[i].ID == postID {
			return i
		}
	}
	return -1
}

func (s *FeedService) savedIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if _, err := s.prefs.Get(ctx, SavedKey(userID), &ids); err != nil {
		return nil, fmt.Errorf("failed to read saved posts: %w", err)
	}
	return ids, nil
}

func (s *FeedService) savedSet(ctx context.Context, userID string) map[string]bool {
	ids, err := s.savedIDs(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load saved posts")
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func clonePosts(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		comments := make([]models.Comment, len(p.Comments))
		copy(comments, p.Comments)
		p.Comments = comments
		out[i] = p
	}
	return out
}
