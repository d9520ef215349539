package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// MessageRepository handles direct message persistence.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO messages (id, sender_id, recipient_id, subject, body, read, created_at)
        VALUES (:id, :sender_id, :recipient_id, :subject, :body, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindByID returns one message.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	if err := r.db.GetContext(ctx, &message, "SELECT * FROM messages WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &message, nil
}

// Inbox returns messages received by a user, newest first.
func (r *MessageRepository) Inbox(ctx context.Context, userID string, page, size int) ([]models.MessageDetail, int, error) {
	return r.listByColumn(ctx, "recipient_id", userID, page, size)
}

// Sent returns messages sent by a user, newest first.
func (r *MessageRepository) Sent(ctx context.Context, userID string, page, size int) ([]models.MessageDetail, int, error) {
	return r.listByColumn(ctx, "sender_id", userID, page, size)
}

func (r *MessageRepository) listByColumn(ctx context.Context, column, userID string, page, size int) ([]models.MessageDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT m.id, m.sender_id, m.recipient_id, m.subject, m.body, m.read, m.read_at, m.created_at,
        s.full_name AS sender_name, rc.full_name AS recipient_name
        FROM messages m
        JOIN users s ON s.id = m.sender_id
        JOIN users rc ON rc.id = m.recipient_id
        WHERE m.%s = $1
        ORDER BY m.created_at DESC LIMIT %d OFFSET %d`, column, size, offset)
	var messages []models.MessageDetail
	if err := r.db.SelectContext(ctx, &messages, query, userID); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM messages WHERE %s = $1", column)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return messages, total, nil
}

// MarkRead flags a message as read by its recipient.
func (r *MessageRepository) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE messages SET read = true, read_at = $2 WHERE id = $1 AND read = false", id, readAt)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil
	}
	return nil
}

// UnreadCount returns the number of unread messages for a recipient.
func (r *MessageRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read = false", userID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
