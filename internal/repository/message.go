package repository

import (
	"context"
	"fmt"

	"lumina/internal/models"

	"github.com/jackc/pgx/v5"
)

// MessageRepository handles database operations for direct messages
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Conversation retrieves every message exchanged between a and b, oldest first
func (r *MessageRepository) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, text, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return messages, nil
}

// ListTouching retrieves every message sent or received by userID, newest first
func (r *MessageRepository) ListTouching(ctx context.Context, userID string) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, text, created_at
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return messages, nil
}

// Create inserts a message and returns the server-confirmed row
func (r *MessageRepository) Create(ctx context.Context, senderID, receiverID, text string) (*models.Message, error) {
	query := `
		INSERT INTO messages (sender_id, receiver_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, sender_id, receiver_id, text, created_at
	`
	rows, err := r.db.Query(ctx, query, senderID, receiverID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	msg, err := pgx.CollectExactlyOneRow(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &msg, nil
}

func scanMessage(row pgx.CollectableRow) (models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.CreatedAt)
	return m, err
}
