package services

import (
	"context"
	"fmt"
	"sync"

	"lumina/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	directoryLimit  = 20
	searchLimit     = 10
	minSearchLength = 2
)

// FollowsKey returns the preference key of a viewer's followed user IDs
func FollowsKey(userID string) string {
	return "lumina_follows_" + userID
}

// CommunityService lists other users and keeps the local follow relation
type CommunityService struct {
	profiles ProfileStore
	prefs    PreferenceStore
	viewer   Viewer
	alerts   *AlertService
	notifier Notifier

	mu        sync.Mutex
	directory []models.Identity
}

// NewCommunityService creates a new community service
func NewCommunityService(
	profiles ProfileStore,
	prefs PreferenceStore,
	viewer Viewer,
	alerts *AlertService,
	notifier Notifier,
) *CommunityService {
	return &CommunityService{
		profiles: profiles,
		prefs:    prefs,
		viewer:   viewer,
		alerts:   alerts,
		notifier: orNop(notifier),
	}
}

// Directory reloads up to 20 profiles other than the viewer
func (s *CommunityService) Directory(ctx context.Context) []models.Identity {
	me := s.viewer.Current()
	if me == nil {
		return nil
	}

	profiles, err := s.profiles.ListExcept(ctx, me.ID, directoryLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load community directory")
		s.mu.Lock()
		defer s.mu.Unlock()
		return append([]models.Identity{}, s.directory...)
	}

	out := s.decorate(ctx, me.ID, profiles)
	s.mu.Lock()
	s.directory = out
	s.mu.Unlock()

	s.notifier.Publish(EventDirectoryUpdated, nil)
	return append([]models.Identity{}, out...)
}

// Search matches username or full name. Queries shorter than two
// characters return no results without a remote call.
func (s *CommunityService) Search(ctx context.Context, query string) []models.Identity {
	me := s.viewer.Current()
	if me == nil || len([]rune(query)) < minSearchLength {
		return []models.Identity{}
	}

	profiles, err := s.profiles.Search(ctx, query, me.ID, searchLimit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to search profiles")
		return []models.Identity{}
	}
	return s.decorate(ctx, me.ID, profiles)
}

// Profile loads another user's profile
func (s *CommunityService) Profile(ctx context.Context, userID string) (*models.Identity, error) {
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	out := s.decorate(ctx, me.ID, []models.Identity{*p})[0]
	return &out, nil
}

// ToggleFollow flips userID in the viewer's follow set and returns the new state
func (s *CommunityService) ToggleFollow(ctx context.Context, userID string) (bool, error) {
	me := s.viewer.Current()
	if me == nil {
		return false, ErrNotAuthenticated
	}

	ids, err := s.followIDs(ctx, me.ID)
	if err != nil {
		return false, err
	}

	following := true
	next := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id == userID {
			following = false
			continue
		}
		next = append(next, id)
	}
	if following {
		next = append(next, userID)
	}

	if err := s.prefs.Set(ctx, FollowsKey(me.ID), next); err != nil {
		return false, fmt.Errorf("failed to update follows: %w", err)
	}

	s.mu.Lock()
	for i := range s.directory {
		if s.directory[i].ID == userID {
			s.directory[i].IsFollowing = following
		}
	}
	s.mu.Unlock()

	if following {
		s.alerts.Record(models.AlertFollow, *me, AlertPayload{})
	}
	s.notifier.Publish(EventDirectoryUpdated, nil)
	return following, nil
}

// Following returns the viewer's followed user IDs
func (s *CommunityService) Following(ctx context.Context) ([]string, error) {
	me := s.viewer.Current()
	if me == nil {
		return nil, ErrNotAuthenticated
	}
	ids, err := s.followIDs(ctx, me.ID)
	if ids == nil {
		ids = []string{}
	}
	return ids, err
}

// Reset drops the cached directory
func (s *CommunityService) Reset() {
	s.mu.Lock()
	s.directory = nil
	s.mu.Unlock()
}

func (s *CommunityService) decorate(ctx context.Context, viewerID string, profiles []models.Identity) []models.Identity {
	ids, err := s.followIDs(ctx, viewerID)
	if err != nil {
		log.Error().Err(err).Str("user_id", viewerID).Msg("Failed to load follows")
	}
	follows := make(map[string]bool, len(ids))
	for _, id := range ids {
		follows[id] = true
	}

	out := make([]models.Identity, 0, len(profiles))
	for _, p := range profiles {
		p = fillIdentity(p, p.Username)
		p.IsFollowing = follows[p.ID]
		p.Mobile = ""
		out = append(out, p)
	}
	return out
}

func (s *CommunityService) followIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if _, err := s.prefs.Get(ctx, FollowsKey(userID), &ids); err != nil {
		return nil, fmt.Errorf("failed to read follows: %w", err)
	}
	return ids, nil
}
