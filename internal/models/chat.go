package models

import "time"

// ChatRole is the author of a transcript message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a persisted advisory conversation.
type ChatMessage struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Role        ChatRole  `db:"role" json:"role"`
	Message     string    `db:"message" json:"message"`
	ContextData *string   `db:"context_data" json:"context_data,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ChatButton is a quick-action suggestion returned with assistant replies.
type ChatButton struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}
