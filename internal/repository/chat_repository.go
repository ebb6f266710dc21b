package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/homeroom-api/internal/models"
)

// ChatRepository persists advisory chat transcripts keyed by session.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository constructs a new repository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// History returns the most recent messages of a session in chronological
// order so they can be replayed verbatim as model context.
func (r *ChatRepository) History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	var messages []models.ChatMessage
	query := fmt.Sprintf(`SELECT * FROM (
	SELECT id, session_id, teacher_id, role, message, context_data, created_at
	FROM chat_messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT %d
) recent ORDER BY created_at ASC`, limit)
	if err := r.db.SelectContext(ctx, &messages, query, sessionID); err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return messages, nil
}

// Insert appends one message to the transcript.
func (r *ChatRepository) Insert(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO chat_messages (id, session_id, teacher_id, role, message, context_data, created_at)
VALUES (:id, :session_id, :teacher_id, :role, :message, :context_data, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// DeleteSession removes an entire transcript.
func (r *ChatRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete chat session: %w", err)
	}
	return nil
}
