package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"lumina/internal/auth"
	"lumina/internal/models"

	"github.com/rs/zerolog/log"
)

// SessionKey is the preference key holding the persisted auth session
const SessionKey = "lumina_session"

const (
	defaultRefreshMargin = time.Minute
	defaultRefreshRetry  = 30 * time.Second
)

// RegisterRequest holds the registration form
type RegisterRequest struct {
	FullName string `json:"full_name"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// SessionService owns the current authenticated identity
type SessionService struct {
	profiles       ProfileStore
	provider       AuthProvider
	verifier       TokenVerifier
	prefs          PreferenceStore
	profileTimeout time.Duration
	randIntN       func(int) int
	refreshMargin  time.Duration
	refreshRetry   time.Duration
	rescheduled    chan struct{}

	mu             sync.RWMutex
	identity       *models.Identity
	tokens         *auth.Session
	listeners      []func(*models.Identity)
	tokenListeners []func(string)
}

// NewSessionService creates a new session service
func NewSessionService(
	profiles ProfileStore,
	provider AuthProvider,
	verifier TokenVerifier,
	prefs PreferenceStore,
	profileTimeout time.Duration,
) *SessionService {
	return &SessionService{
		profiles:       profiles,
		provider:       provider,
		verifier:       verifier,
		prefs:          prefs,
		profileTimeout: profileTimeout,
		randIntN:       rand.IntN,
		refreshMargin:  defaultRefreshMargin,
		refreshRetry:   defaultRefreshRetry,
		rescheduled:    make(chan struct{}, 1),
	}
}

// Current returns a copy of the current identity, or nil when logged out
func (s *SessionService) Current() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// AccessToken returns the current access token
func (s *SessionService) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.AccessToken
}

// OnChange registers a listener for identity transitions. Listeners receive
// nil on teardown.
func (s *SessionService) OnChange(fn func(*models.Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// OnTokenRefresh registers a listener for access tokens renewed while the
// identity stays the same
func (s *SessionService) OnTokenRefresh(fn func(accessToken string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenListeners = append(s.tokenListeners, fn)
}

// KeepFresh renews the access token shortly before it expires and persists
// the result. It runs until ctx is cancelled.
func (s *SessionService) KeepFresh(ctx context.Context) {
	for {
		wait, ok := s.nextRefresh()
		var fire <-chan time.Time
		var timer *time.Timer
		if ok {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.rescheduled:
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			if err := s.refresh(ctx); err != nil {
				log.Warn().Err(err).Dur("retry", s.refreshRetry).Msg("Failed to refresh access token")
				select {
				case <-ctx.Done():
					return
				case <-s.rescheduled:
				case <-time.After(s.refreshRetry):
				}
			}
		}
	}
}

// nextRefresh returns how long to wait before renewing the current tokens
func (s *SessionService) nextRefresh() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil || s.tokens.RefreshToken == "" || s.tokens.ExpiresAt.IsZero() {
		return 0, false
	}
	return max(time.Until(s.tokens.ExpiresAt)-s.refreshMargin, 0), true
}

func (s *SessionService) refresh(ctx context.Context) error {
	s.mu.RLock()
	current := s.tokens
	s.mu.RUnlock()
	if current == nil {
		return nil
	}

	refreshed, err := s.provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return err
	}
	if refreshed.User.ID == "" {
		refreshed.User.ID = current.User.ID
	}
	if refreshed.User.Email == "" {
		refreshed.User.Email = current.User.Email
	}

	s.mu.Lock()
	if s.tokens != current {
		// replaced or torn down while the request was in flight
		s.mu.Unlock()
		return nil
	}
	s.tokens = refreshed
	listeners := slices.Clone(s.tokenListeners)
	s.mu.Unlock()

	if err := s.prefs.Set(ctx, SessionKey, refreshed); err != nil {
		log.Warn().Err(err).Msg("Failed to persist refreshed session")
	}
	log.Info().Str("user_id", refreshed.User.ID).Time("expires_at", refreshed.ExpiresAt).Msg("Access token refreshed")
	for _, fn := range listeners {
		fn(refreshed.AccessToken)
	}
	return nil
}

func (s *SessionService) reschedule() {
	select {
	case s.rescheduled <- struct{}{}:
	default:
	}
}

// Establish resolves an access token to a hydrated identity and makes it current
func (s *SessionService) Establish(ctx context.Context, accessToken string) (*models.Identity, error) {
	handle := ""
	s.mu.RLock()
	if s.tokens != nil && s.tokens.AccessToken == accessToken {
		handle = s.tokens.User.Email
	}
	s.mu.RUnlock()
	return s.establish(ctx, accessToken, handle)
}

func (s *SessionService) establish(ctx context.Context, accessToken, handle string) (*models.Identity, error) {
	userID, err := s.verifier.Verify(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	identity := s.hydrate(ctx, userID, handle)

	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()

	log.Info().Str("user_id", identity.ID).Str("username", identity.Username).Msg("Session established")
	s.notify(identity)
	return s.Current(), nil
}

// hydrate loads the profile for userID, giving up after the profile timeout
func (s *SessionService) hydrate(ctx context.Context, userID, handle string) *models.Identity {
	hctx, cancel := context.WithTimeout(ctx, s.profileTimeout)
	defer cancel()

	type result struct {
		profile *models.Identity
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := s.profiles.GetByID(hctx, userID)
		ch <- result{p, err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && r.profile != nil {
			p := fillIdentity(*r.profile, r.profile.Username)
			return &p
		}
		log.Warn().Err(r.err).Str("user_id", userID).Msg("Profile lookup failed, using fallback identity")
	case <-hctx.Done():
		log.Warn().Str("user_id", userID).Dur("timeout", s.profileTimeout).Msg("Profile lookup timed out, using fallback identity")
	}
	return fallbackIdentity(userID, handle)
}

func fallbackIdentity(userID, handle string) *models.Identity {
	username := ""
	if at := strings.IndexByte(handle, '@'); at > 0 {
		username = handle[:at]
	}
	if username == "" {
		prefix := userID
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		username = "user_" + prefix
	}
	return &models.Identity{
		ID:       userID,
		Username: username,
		FullName: fallbackFullName,
		Avatar:   AvatarURL(username),
	}
}

// Resume restores the persisted session on start. Without a stored session
// it returns nil and no error.
func (s *SessionService) Resume(ctx context.Context) (*models.Identity, error) {
	var stored auth.Session
	found, err := s.prefs.Get(ctx, SessionKey, &stored)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored session: %w", err)
	}
	if !found || stored.AccessToken == "" {
		return nil, nil
	}

	sess := &stored
	if stored.RefreshToken != "" {
		refreshed, err := s.provider.Refresh(ctx, stored.RefreshToken)
		switch {
		case err == nil:
			sess = refreshed
			if sess.User.Email == "" {
				sess.User.Email = stored.User.Email
			}
		case !stored.ExpiresAt.IsZero() && time.Now().After(stored.ExpiresAt):
			log.Warn().Err(err).Msg("Stored session expired and could not be refreshed")
			s.forget(ctx)
			return nil, nil
		default:
			log.Warn().Err(err).Msg("Failed to refresh stored session, reusing it")
		}
	}

	identity, err := s.adopt(ctx, sess)
	if err != nil {
		s.forget(ctx)
		log.Warn().Err(err).Msg("Stored session rejected")
		return nil, nil
	}
	return identity, nil
}

// Register creates the auth record and the profile for a new user
func (s *SessionService) Register(ctx context.Context, req RegisterRequest) (*models.Identity, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, ErrInvalidName
	}
	handle, err := LoginHandle(req.Mobile)
	if err != nil {
		return nil, err
	}

	sess, err := s.provider.SignUp(ctx, handle, req.Password)
	if err != nil {
		return nil, authFailure("sign up", err)
	}
	if sess.AccessToken == "" {
		// confirmation-free backends answer sign up with tokens; others need a sign in
		if sess, err = s.provider.SignIn(ctx, handle, req.Password); err != nil {
			return nil, authFailure("sign in", err)
		}
	}

	username := usernameFor(req.FullName, s.randIntN(100))
	profile := &models.Identity{
		ID:       sess.User.ID,
		Username: username,
		FullName: fullName,
		Mobile:   SanitizeMobile(req.Mobile),
		Avatar:   AvatarURL(username),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		log.Warn().Err(err).Str("user_id", sess.User.ID).Msg("Profile creation failed after sign up, continuing with degraded identity")
	}

	return s.adopt(ctx, sess)
}

// Login signs in with a mobile number and password
func (s *SessionService) Login(ctx context.Context, mobile, password string) (*models.Identity, error) {
	handle, err := LoginHandle(mobile)
	if err != nil {
		return nil, err
	}

	sess, err := s.provider.SignIn(ctx, handle, password)
	if err != nil {
		return nil, authFailure("sign in", err)
	}
	return s.adopt(ctx, sess)
}

// UpdateProfile edits the current user's profile and re-hydrates the identity
func (s *SessionService) UpdateProfile(ctx context.Context, u models.ProfileUpdate) (*models.Identity, error) {
	current := s.Current()
	if current == nil {
		return nil, ErrNotAuthenticated
	}

	if err := s.profiles.Update(ctx, current.ID, u); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	profile, err := s.profiles.GetByID(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload profile: %w", err)
	}
	updated := fillIdentity(*profile, profile.Username)

	s.mu.Lock()
	s.identity = &updated
	s.mu.Unlock()

	s.notify(&updated)
	return s.Current(), nil
}

// Teardown signs out and clears the local session
func (s *SessionService) Teardown(ctx context.Context) {
	s.mu.Lock()
	tokens := s.tokens
	wasLoggedIn := s.identity != nil
	s.tokens = nil
	s.identity = nil
	s.mu.Unlock()

	if tokens != nil && tokens.AccessToken != "" {
		if err := s.provider.SignOut(ctx, tokens.AccessToken); err != nil {
			log.Warn().Err(err).Msg("Remote sign out failed")
		}
	}
	s.forget(ctx)
	s.reschedule()

	if wasLoggedIn {
		log.Info().Msg("Session torn down")
		s.notify(nil)
	}
}

func (s *SessionService) adopt(ctx context.Context, sess *auth.Session) (*models.Identity, error) {
	s.mu.Lock()
	s.tokens = sess
	s.mu.Unlock()

	identity, err := s.establish(ctx, sess.AccessToken, sess.User.Email)
	if err != nil {
		s.mu.Lock()
		s.tokens = nil
		s.mu.Unlock()
		return nil, err
	}

	if err := s.prefs.Set(ctx, SessionKey, sess); err != nil {
		log.Warn().Err(err).Msg("Failed to persist session")
	}
	s.reschedule()
	return identity, nil
}

func (s *SessionService) forget(ctx context.Context) {
	if err := s.prefs.Delete(ctx, SessionKey); err != nil {
		log.Warn().Err(err).Msg("Failed to clear stored session")
	}
}

func (s *SessionService) notify(identity *models.Identity) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		if identity == nil {
			fn(nil)
			continue
		}
		id := *identity
		fn(&id)
	}
}

// authFailure maps provider rejections to ErrInvalidCredentials
func authFailure(op string, err error) error {
	var apiErr *auth.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
