// Package auth talks to the backend's password auth service and verifies the
// access tokens it issues.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
)

// User is the auth record owned by the backend
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated token pair
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// APIError is a non-2xx answer from the auth service
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth service returned %d: %s", e.Status, e.Message)
}

// Client wraps the GoTrue client for the backend's auth API
type Client struct {
	api gotrue.Client
}

// NewClient creates a new auth client for the backend at baseURL
func NewClient(baseURL, apiKey string) *Client {
	api := gotrue.New("", apiKey).
		WithCustomAuthURL(strings.TrimRight(baseURL, "/") + "/auth/v1").
		WithClient(http.Client{Timeout: 15 * time.Second})
	return &Client{api: api}
}

// SignUp creates an auth record. The returned session has no tokens when the
// backend requires confirmation before sign-in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.api.Signup(types.SignupRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", apiError(err))
	}

	s := fromSession(resp.Session)
	if s.User.ID == "" {
		s.User = fromUser(resp.User)
	}
	return s, nil
}

// SignIn performs a password grant
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.api.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", apiError(err))
	}
	return fromSession(resp.Session), nil
}

// Refresh exchanges a refresh token for a new session
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	resp, err := c.api.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", apiError(err))
	}
	return fromSession(resp.Session), nil
}

// SignOut revokes the session behind accessToken
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.api.WithToken(accessToken).Logout(); err != nil {
		return fmt.Errorf("sign out: %w", apiError(err))
	}
	return nil
}

func fromUser(u types.User) User {
	if u.ID == uuid.Nil {
		return User{Email: u.Email}
	}
	return User{ID: u.ID.String(), Email: u.Email}
}

func fromSession(t types.Session) *Session {
	s := &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         fromUser(t.User),
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(int64(t.ExpiresAt), 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

var statusError = regexp.MustCompile(`(?s)^response status code (\d+): (.*)$`)

// apiError turns the GoTrue client's status errors into an APIError
func apiError(err error) error {
	m := statusError.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	status, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return err
	}
	return &APIError{Status: status, Message: errorMessage([]byte(m[2]))}
}

// errorMessage extracts the human readable part of an auth error body
func errorMessage(body []byte) string {
	var e struct {
		Description string `json:"error_description"`
		Msg         string `json:"msg"`
		Message     string `json:"message"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return string(body)
	}
	for _, m := range []string{e.Description, e.Msg, e.Message, e.Error} {
		if m != "" {
			return m
		}
	}
	return string(body)
}
