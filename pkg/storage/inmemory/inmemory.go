// Package inmemory provides a map-backed Store for tests and ephemeral runs.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/choruslabs/chorus/pkg/chat"
	"github.com/choruslabs/chorus/pkg/storage"
)

type message struct {
	id        string
	turnID    string
	role      string
	sourceID  string
	content   string
	createdAt time.Time
}

// Store implements storage.Store using in-memory maps.
type Store struct {
	// mu guards chats, messages, and turns.
	mu sync.RWMutex

	chats map[string]*storage.Chat

	// messages holds each chat's rows in insertion order.
	messages map[string][]message

	// turns maps turn ID to the owning chat ID.
	turns map[string]string
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		chats:    make(map[string]*storage.Chat),
		messages: make(map[string][]message),
		turns:    make(map[string]string),
	}
}

func (s *Store) CreateChat(_ context.Context, title string) (*storage.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	c := &storage.Chat{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chats[c.ID] = c

	copied := *c
	return &copied, nil
}

func (s *Store) ListChats(_ context.Context) ([]*storage.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		copied := *c
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}

func (s *Store) GetChat(_ context.Context, id string) (*storage.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "chat", ID: id}
	}

	copied := *c
	return &copied, nil
}

func (s *Store) DeleteChat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[id]; !ok {
		return storage.NotFoundError{Kind: "chat", ID: id}
	}

	for _, m := range s.messages[id] {
		delete(s.turns, m.turnID)
	}
	delete(s.messages, id)
	delete(s.chats, id)

	return nil
}

func (s *Store) CreateTurn(_ context.Context, chatID string, userText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return "", storage.NotFoundError{Kind: "chat", ID: chatID}
	}

	now := time.Now().UTC()
	turnID := uuid.NewString()
	s.messages[chatID] = append(s.messages[chatID], message{
		id:        uuid.NewString(),
		turnID:    turnID,
		role:      storage.RoleUser,
		content:   userText,
		createdAt: now,
	})
	s.turns[turnID] = chatID
	c.UpdatedAt = now

	return turnID, nil
}

func (s *Store) AppendResponses(_ context.Context, turnID string, responses []storage.SourceResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chatID, ok := s.turns[turnID]
	if !ok {
		return storage.NotFoundError{Kind: "turn", ID: turnID}
	}

	now := time.Now().UTC()
	for _, r := range responses {
		s.messages[chatID] = append(s.messages[chatID], message{
			id:        uuid.NewString(),
			turnID:    turnID,
			role:      storage.RoleAssistant,
			sourceID:  r.SourceID,
			content:   r.Text,
			createdAt: now,
		})
	}

	return nil
}

func (s *Store) ListTurns(_ context.Context, chatID string) ([]*chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.chats[chatID]; !ok {
		return nil, storage.NotFoundError{Kind: "chat", ID: chatID}
	}

	var (
		turns  []*chat.Turn
		byTurn = make(map[string]*chat.Turn)
	)
	for _, m := range s.messages[chatID] {
		switch m.role {
		case storage.RoleUser:
			t := chat.NewTurn(m.turnID, m.content)
			byTurn[m.turnID] = t
			turns = append(turns, t)
		case storage.RoleAssistant:
			t, ok := byTurn[m.turnID]
			if !ok {
				continue
			}
			t.AddResponse(m.sourceID, &chat.Response{Text: m.content, Done: true})
		}
	}

	return turns, nil
}

func (s *Store) Close() error {
	return nil
}
