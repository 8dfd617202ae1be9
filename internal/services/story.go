package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"lumina/internal/models"

	"github.com/rs/zerolog/log"
)

// StoryTTL is how long a story stays visible after it is posted
const StoryTTL = 24 * time.Hour

// Playback timing of the story player
const (
	StoryDuration     = 5 * time.Second
	StoryTickInterval = 50 * time.Millisecond
)

// Active reports whether a story created at createdAt is visible at now
func Active(now, createdAt time.Time) bool {
	return now.Sub(createdAt) < StoryTTL
}

// StoryService keeps the non-expired stories
type StoryService struct {
	stories  StoryStore
	viewer   Viewer
	notifier Notifier
	now      func() time.Time

	mu    sync.Mutex
	items []models.Story
}

// NewStoryService creates a new story service
func NewStoryService(stories StoryStore, viewer Viewer, notifier Notifier) *StoryService {
	return &StoryService{
		stories:  stories,
		viewer:   viewer,
		notifier: orNop(notifier),
		now:      time.Now,
	}
}

// Refresh reloads the stories posted within the last StoryTTL, newest first
func (s *StoryService) Refresh(ctx context.Context) []models.Story {
	now := s.now()
	stories, err := s.stories.ListSince(ctx, now.Add(-StoryTTL))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load stories")
		return s.Stories()
	}

	active := make([]models.Story, 0, len(stories))
	for _, st := range stories {
		if !Active(now, st.CreatedAt) {
			continue
		}
		st.Author = fillIdentity(st.Author, st.Author.ID)
		active = append(active, st)
	}

	s.mu.Lock()
	s.items = active
	s.mu.Unlock()

	s.notifier.Publish(EventStoriesUpdated, nil)
	return s.Stories()
}

// Stories returns the current stories that are still active
func (s *StoryService) Stories() []models.Story {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Story, 0, len(s.items))
	for _, st := range s.items {
		if Active(now, st.CreatedAt) {
			out = append(out, st)
		}
	}
	return out
}

// Post publishes a story and reloads the list
func (s *StoryService) Post(ctx context.Context, imageRef string) ([]models.Story, error) {
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(imageRef) == "" {
		return nil, ErrMissingImage
	}

	if _, err := s.stories.Create(ctx, me.ID, imageRef); err != nil {
		log.Error().Err(err).Str("user_id", me.ID).Msg("Failed to post story")
	}
	return s.Refresh(ctx), nil
}

// MarkViewed flags a story as viewed locally
func (s *StoryService) MarkViewed(storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == storyID {
			s.items[i].Viewed = true
		}
	}
}

// Reset drops the stories
func (s *StoryService) Reset() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// Player is the timed state machine of a single story view. It is either
// playing (progress below 100) or closed.
type Player struct {
	step     float64
	progress float64
	closed   bool
}

// NewPlayer creates a player at progress zero
func NewPlayer() *Player {
	return &Player{step: float64(StoryTickInterval) * 100 / float64(StoryDuration)}
}

// Progress returns the playback progress in percent
func (p *Player) Progress() float64 {
	return p.progress
}

// Closed reports whether the player has closed
func (p *Player) Closed() bool {
	return p.closed
}

// Tick advances progress by one step. A tick that observes full progress
// closes the player instead.
func (p *Player) Tick() bool {
	if p.closed {
		return true
	}
	if p.progress >= 100 {
		p.closed = true
		return true
	}
	p.progress += p.step
	return false
}

// Run ticks every StoryTickInterval until the player closes or ctx is done.
// onTick receives the progress after every tick.
func (p *Player) Run(ctx context.Context, onTick func(progress float64)) error {
	ticker := time.NewTicker(StoryTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			closed := p.Tick()
			if onTick != nil {
				onTick(p.progress)
			}
			if closed {
				return nil
			}
		}
	}
}
