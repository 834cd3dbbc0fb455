// Package sqlite provides a SQLite-backed Store using the mattn/go-sqlite3
// driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/choruslabs/chorus/pkg/chat"
	"github.com/choruslabs/chorus/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	turn_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	source_id  TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq);
CREATE INDEX IF NOT EXISTS idx_messages_turn ON messages(turn_id);
`

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite-backed store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) CreateChat(ctx context.Context, title string) (*storage.Chat, error) {
	now := time.Now().UTC()
	c := &storage.Chat{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chats (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		c.ID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	return c, nil
}

func (s *Store) ListChats(ctx context.Context) ([]*storage.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at, updated_at FROM chats ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var out []*storage.Chat
	for rows.Next() {
		var c storage.Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		out = append(out, &c)
	}

	return out, rows.Err()
}

func (s *Store) GetChat(ctx context.Context, id string) (*storage.Chat, error) {
	var c storage.Chat
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at, updated_at FROM chats WHERE id = ?", id).
		Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Kind: "chat", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	return &c, nil
}

func (s *Store) DeleteChat(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if affected == 0 {
		return storage.NotFoundError{Kind: "chat", ID: id}
	}

	return nil
}

func (s *Store) CreateTurn(ctx context.Context, chatID string, userText string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM chats WHERE id = ?", chatID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.NotFoundError{Kind: "chat", ID: chatID}
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up chat: %w", err)
	}

	now := time.Now().UTC()
	turnID := uuid.NewString()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, chat_id, turn_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.NewString(), chatID, turnID, storage.RoleUser, userText, now)
	if err != nil {
		return "", fmt.Errorf("failed to create turn: %w", err)
	}

	_, err = tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", now, chatID)
	if err != nil {
		return "", fmt.Errorf("failed to touch chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit turn: %w", err)
	}

	return turnID, nil
}

func (s *Store) AppendResponses(ctx context.Context, turnID string, responses []storage.SourceResponse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var chatID string
	err = tx.QueryRowContext(ctx,
		"SELECT chat_id FROM messages WHERE turn_id = ? AND role = ?", turnID, storage.RoleUser).
		Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFoundError{Kind: "turn", ID: turnID}
	}
	if err != nil {
		return fmt.Errorf("failed to look up turn: %w", err)
	}

	now := time.Now().UTC()
	for _, r := range responses {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (id, chat_id, turn_id, role, source_id, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			uuid.NewString(), chatID, turnID, storage.RoleAssistant, r.SourceID, r.Text, now)
		if err != nil {
			return fmt.Errorf("failed to append response: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", now, chatID)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}

	return tx.Commit()
}

func (s *Store) ListTurns(ctx context.Context, chatID string) ([]*chat.Turn, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT turn_id, role, source_id, content FROM messages WHERE chat_id = ? ORDER BY seq",
		chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var (
		turns  []*chat.Turn
		byTurn = make(map[string]*chat.Turn)
	)
	for rows.Next() {
		var turnID, role, sourceID, content string
		if err := rows.Scan(&turnID, &role, &sourceID, &content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		switch role {
		case storage.RoleUser:
			t := chat.NewTurn(turnID, content)
			byTurn[turnID] = t
			turns = append(turns, t)
		case storage.RoleAssistant:
			t, ok := byTurn[turnID]
			if !ok {
				continue
			}
			t.AddResponse(sourceID, &chat.Response{Text: content, Done: true})
		}
	}

	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
