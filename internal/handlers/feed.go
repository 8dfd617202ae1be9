package handlers

import (
	"net/http"

	"lumina/internal/services"

	"github.com/go-chi/chi/v5"
)

// FeedHandler handles post, like, save and comment HTTP requests
type FeedHandler struct {
	feed *services.FeedService
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feed *services.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// CreatePostRequest represents the request body for creating a post
type CreatePostRequest struct {
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption"`
}

// UpdatePostRequest represents the request body for editing a caption
type UpdatePostRequest struct {
	Caption string `json:"caption"`
}

// CommentRequest represents the request body for adding a comment
type CommentRequest struct {
	Text string `json:"text"`
}

// GetFeed handles GET /api/v1/feed. ?refresh=true reloads from the backend.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		respondJSON(w, http.StatusOK, map[string]interface{}{"posts": h.feed.Refresh(r.Context())})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": h.feed.Posts()})
}

// GetSaved handles GET /api/v1/saved
func (h *FeedHandler) GetSaved(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": h.feed.SavedPosts()})
}

// CreatePost handles POST /api/v1/posts
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	posts, err := h.feed.Create(r.Context(), req.ImageURL, req.Caption)
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"posts": posts})
}

// UpdatePost handles PATCH /api/v1/posts/{post_id}
func (h *FeedHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req UpdatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	posts, err := h.feed.UpdateCaption(r.Context(), chi.URLParam(r, "post_id"), req.Caption)
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// DeletePost handles DELETE /api/v1/posts/{post_id}
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	posts, err := h.feed.Delete(r.Context(), chi.URLParam(r, "post_id"))
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// Like handles POST /api/v1/posts/{post_id}/like
func (h *FeedHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, true)
}

// Unlike handles DELETE /api/v1/posts/{post_id}/like
func (h *FeedHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, false)
}

func (h *FeedHandler) toggleLike(w http.ResponseWriter, r *http.Request, like bool) {
	postID := chi.URLParam(r, "post_id")

	var err error
	if like {
		err = h.feed.Like(r.Context(), postID)
	} else {
		err = h.feed.Unlike(r.Context(), postID)
	}
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}

	post, err := h.feed.Post(postID)
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// Save handles POST /api/v1/posts/{post_id}/save
func (h *FeedHandler) Save(w http.ResponseWriter, r *http.Request) {
	saved, err := h.feed.Save(r.Context(), chi.URLParam(r, "post_id"))
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

// GetComments handles GET /api/v1/posts/{post_id}/comments
func (h *FeedHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.feed.Comments(r.Context(), chi.URLParam(r, "post_id"))
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

// AddComment handles POST /api/v1/posts/{post_id}/comments
func (h *FeedHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.feed.AddComment(r.Context(), chi.URLParam(r, "post_id"), req.Text)
	if err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	if comment == nil {
		// dropped by the backend; the failure is logged by the service
		w.WriteHeader(http.StatusAccepted)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}
