package models

import (
	"encoding/json"
	"time"
)

// Identity represents a user's profile as hydrated from the profiles table
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio,omitempty"`
	Work        string `json:"work,omitempty"`
	Location    string `json:"location,omitempty"`
	Website     string `json:"website,omitempty"`
	CoverPhoto  string `json:"cover_photo,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
	IsFollowing bool   `json:"is_following,omitempty"`
}

// ProfileUpdate holds the editable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName   *string `json:"full_name,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	CoverPhoto *string `json:"cover_photo,omitempty"`
	Work       *string `json:"work,omitempty"`
	Location   *string `json:"location,omitempty"`
	Website    *string `json:"website,omitempty"`
}

// Post represents a feed post with viewer-derived like and save state
type Post struct {
	ID        string    `json:"id"`
	Author    Identity  `json:"user"`
	ImageURL  string    `json:"image_url"`
	Caption   string    `json:"caption"`
	Likes     int       `json:"likes"`
	IsLiked   bool      `json:"is_liked"`
	IsSaved   bool      `json:"is_saved"`
	CreatedAt time.Time `json:"created_at"`
	Comments  []Comment `json:"comments"`
}

// Comment represents a comment on a post
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Story represents an ephemeral post that expires by read-time filtering
type Story struct {
	ID        string    `json:"id"`
	Author    Identity  `json:"user"`
	ImageURL  string    `json:"image_url"`
	Viewed    bool      `json:"viewed"`
	CreatedAt time.Time `json:"created_at"`
}

// Message represents a direct message between two users
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// AlertKind enumerates locally observed interaction events
type AlertKind string

const (
	AlertLike    AlertKind = "like"
	AlertComment AlertKind = "comment"
	AlertFollow  AlertKind = "follow"
	AlertMessage AlertKind = "message"
)

// Alert is an in-memory notification entry
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Source    Identity  `json:"source"`
	Text      string    `json:"text,omitempty"`
	PostID    string    `json:"post_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Label     string    `json:"label"`
	Read      bool      `json:"read"`
}

// Change event types delivered by the realtime feed
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeEvent is a realtime notification about a row change in a watched table
type ChangeEvent struct {
	Table           string          `json:"table"`
	Type            string          `json:"type"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldRecord       json.RawMessage `json:"old_record,omitempty"`
	CommitTimestamp string          `json:"commit_timestamp,omitempty"`
}
