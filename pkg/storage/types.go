package storage

import "time"

// Chat is a persisted conversation.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceResponse is one source's completed text, ready to persist.
type SourceResponse struct {
	SourceID string
	Text     string
}

// Message roles as stored in the messages table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
