package repository

import (
	"context"
	"fmt"

	"lumina/internal/models"

	"github.com/jackc/pgx/v5"
)

// PostRepository handles database operations for posts and post likes
type PostRepository struct {
	db DBTX
}

// NewPostRepository creates a new post repository
func NewPostRepository(db DBTX) *PostRepository {
	return &PostRepository{db: db}
}

// List retrieves every post with its author snapshot, newest first
func (r *PostRepository) List(ctx context.Context) ([]models.Post, error) {
	query := `
		SELECT p.id, p.image_url, COALESCE(p.caption, ''), COALESCE(p.likes_count, 0), p.created_at,
		       a.id, a.username, a.full_name, a.avatar_url
		FROM posts p
		LEFT JOIN profiles a ON a.id = p.user_id
		ORDER BY p.created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var post models.Post
		var authorID, username, fullName, avatarURL *string
		err := rows.Scan(
			&post.ID, &post.ImageURL, &post.Caption, &post.Likes, &post.CreatedAt,
			&authorID, &username, &fullName, &avatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		post.Author = models.Identity{
			ID:       deref(authorID),
			Username: deref(username),
			FullName: deref(fullName),
			Avatar:   deref(avatarURL),
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}

// Create inserts a new post and returns the server-assigned row
func (r *PostRepository) Create(ctx context.Context, userID, imageURL, caption string) (*models.Post, error) {
	query := `
		INSERT INTO posts (user_id, image_url, caption)
		VALUES ($1, $2, $3)
		RETURNING id, likes_count, created_at
	`
	post := models.Post{ImageURL: imageURL, Caption: caption, Author: models.Identity{ID: userID}}
	err := r.db.QueryRow(ctx, query, userID, imageURL, caption).Scan(&post.ID, &post.Likes, &post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return &post, nil
}

// UpdateCaption changes the caption of a post owned by userID
func (r *PostRepository) UpdateCaption(ctx context.Context, postID, userID, caption string) error {
	query := `UPDATE posts SET caption = $1 WHERE id = $2 AND user_id = $3`
	result, err := r.db.Exec(ctx, query, caption, postID, userID)
	if err != nil {
		return fmt.Errorf("failed to update post caption: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("post not found: %w", ErrNotFound)
	}
	return nil
}

// Delete removes a post owned by userID
func (r *PostRepository) Delete(ctx context.Context, postID, userID string) error {
	query := `DELETE FROM posts WHERE id = $1 AND user_id = $2`
	result, err := r.db.Exec(ctx, query, postID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("post not found: %w", ErrNotFound)
	}
	return nil
}

// LikedPostIDs returns the IDs of every post the user has liked
func (r *PostRepository) LikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT post_id FROM post_likes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get liked posts: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan liked posts: %w", err)
	}
	return ids, nil
}

// Like records a like and bumps the post's counter in one transaction.
// Liking twice is a no-op.
func (r *PostRepository) Like(ctx context.Context, postID, userID string) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			postID, userID,
		)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE posts SET likes_count = likes_count + 1 WHERE id = $1`, postID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to like post: %w", err)
	}
	return nil
}

// Unlike removes a like and decrements the counter, never below zero.
// Unliking a post that was not liked is a no-op.
func (r *PostRepository) Unlike(ctx context.Context, postID, userID string) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`,
			postID, userID,
		)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE posts SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1`, postID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to unlike post: %w", err)
	}
	return nil
}
