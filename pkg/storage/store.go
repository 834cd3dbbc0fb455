// Package storage defines the persistence gateway for chats and turns.
// Drivers live in subpackages (sqlite, postgres, inmemory) and are selected
// by configuration.
package storage

import (
	"context"

	"github.com/choruslabs/chorus/pkg/chat"
)

// Store is the interface for persisting chats and their turns.
type Store interface {
	// CreateChat creates a new chat with the given title.
	CreateChat(ctx context.Context, title string) (*Chat, error)

	// ListChats returns all chats, most recently updated first.
	ListChats(ctx context.Context) ([]*Chat, error)

	// GetChat retrieves a chat by ID.
	GetChat(ctx context.Context, id string) (*Chat, error)

	// DeleteChat removes a chat and all of its messages.
	DeleteChat(ctx context.Context, id string) error

	// CreateTurn records the user message of a new turn and returns the
	// turn ID. The chat's updated_at is touched.
	CreateTurn(ctx context.Context, chatID string, userText string) (string, error)

	// AppendResponses records the completed source responses of a turn.
	AppendResponses(ctx context.Context, turnID string, responses []SourceResponse) error

	// ListTurns reassembles a chat's turns in creation order.
	ListTurns(ctx context.Context, chatID string) ([]*chat.Turn, error)

	// Close closes the store and releases any resources.
	Close() error
}
