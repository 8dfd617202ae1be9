package repository

import (
	"context"
	"fmt"

	"lumina/internal/models"
)

// CommentRepository handles database operations for comments
type CommentRepository struct {
	db DBTX
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByPost retrieves the comments of a post in creation order
func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.user_id, COALESCE(a.username, ''), c.text, c.created_at
		FROM comments c
		LEFT JOIN profiles a ON a.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC
	`
	rows, err := r.db.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}

// Create inserts a comment and returns the server-assigned row
func (r *CommentRepository) Create(ctx context.Context, postID, userID, text string) (*models.Comment, error) {
	query := `
		INSERT INTO comments (post_id, user_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	c := models.Comment{PostID: postID, UserID: userID, Text: text}
	if err := r.db.QueryRow(ctx, query, postID, userID, text).Scan(&c.ID, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return &c, nil
}
