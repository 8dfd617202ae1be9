package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"lumina/internal/models"
	"lumina/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionRouter(t *testing.T, provider *authStub, profiles *profileStore) (chi.Router, *services.SessionService) {
	t.Helper()
	session := services.NewSessionService(profiles, provider, tokenVerifier{}, openPrefs(t), time.Second)
	h := NewSessionHandler(session)

	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/session", h.Current)
	r.Patch("/profile", h.UpdateProfile)
	return r, session
}

func TestSessionHandler_RegisterLogoutLogin(t *testing.T) {
	provider := &authStub{}
	profiles := &profileStore{}
	r, session := newSessionRouter(t, provider, profiles)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/session", "").Code)

	var created SessionResponse
	rec := do(t, r, http.MethodPost, "/auth/register", `{"full_name":"Nova Lee","mobile":"(555) 123-4567","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &created)
	require.NotNil(t, created.Identity)
	assert.Equal(t, "u1", created.Identity.ID)
	assert.Equal(t, "Nova Lee", created.Identity.FullName)
	assert.True(t, strings.HasPrefix(created.Identity.Username, "nova_lee"), created.Identity.Username)
	assert.Equal(t, "token-u1", created.AccessToken)
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, "5551234567", profiles.profiles[0].Mobile)

	var current models.Identity
	rec = do(t, r, http.MethodGet, "/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &current)
	assert.Equal(t, "u1", current.ID)

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodPost, "/auth/logout", "").Code)
	assert.Equal(t, []string{"token-u1"}, provider.signOuts)
	assert.Nil(t, session.Current())
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/session", "").Code)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPost, "/auth/login", `{"mobile":"5551234567","password":"wrong"}`).Code)

	var signedIn SessionResponse
	rec = do(t, r, http.MethodPost, "/auth/login", `{"mobile":"555 123 4567","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &signedIn)
	assert.Equal(t, "u1", signedIn.Identity.ID)
	assert.Equal(t, "token-u1", signedIn.AccessToken)
}

func TestSessionHandler_Validation(t *testing.T) {
	r, _ := newSessionRouter(t, &authStub{}, &profileStore{})

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/auth/register", `{"full_name":" ","mobile":"5551234567","password":"pw"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/auth/register", `{"full_name":"Nova","mobile":"12345","password":"pw"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/auth/login", `{"mobile":"123","password":"pw"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/auth/login", `{`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPatch, "/profile", `{"bio":"hi"}`).Code)
}

func TestSessionHandler_UpdateProfile(t *testing.T) {
	r, _ := newSessionRouter(t, &authStub{}, &profileStore{})
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/auth/register", `{"full_name":"Nova Lee","mobile":"5551234567","password":"pw"}`).Code)

	var updated models.Identity
	rec := do(t, r, http.MethodPatch, "/profile", `{"bio":"night owl","full_name":"Nova L."}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &updated)
	assert.Equal(t, "night owl", updated.Bio)
	assert.Equal(t, "Nova L.", updated.FullName)

	var current models.Identity
	decode(t, do(t, r, http.MethodGet, "/session", ""), &current)
	assert.Equal(t, "night owl", current.Bio)
}
