package repository

import (
	"context"
	"fmt"
	"time"

	"lumina/internal/models"
)

// StoryRepository handles database operations for stories
type StoryRepository struct {
	db DBTX
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db DBTX) *StoryRepository {
	return &StoryRepository{db: db}
}

// ListSince retrieves stories created strictly after since, newest first
func (r *StoryRepository) ListSince(ctx context.Context, since time.Time) ([]models.Story, error) {
	query := `
		SELECT s.id, s.image_url, s.created_at,
		       s.user_id, COALESCE(a.username, ''), COALESCE(a.full_name, ''), COALESCE(a.avatar_url, '')
		FROM stories s
		LEFT JOIN profiles a ON a.id = s.user_id
		WHERE s.created_at > $1
		ORDER BY s.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get stories: %w", err)
	}
	defer rows.Close()

	var stories []models.Story
	for rows.Next() {
		var s models.Story
		err := rows.Scan(
			&s.ID, &s.ImageURL, &s.CreatedAt,
			&s.Author.ID, &s.Author.Username, &s.Author.FullName, &s.Author.Avatar,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stories: %w", err)
	}

	return stories, nil
}

// Create inserts a story
func (r *StoryRepository) Create(ctx context.Context, userID, imageURL string) (*models.Story, error) {
	query := `
		INSERT INTO stories (user_id, image_url)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	s := models.Story{ImageURL: imageURL, Author: models.Identity{ID: userID}}
	if err := r.db.QueryRow(ctx, query, userID, imageURL).Scan(&s.ID, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}
	return &s, nil
}
