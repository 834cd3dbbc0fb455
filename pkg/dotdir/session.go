package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	sessionFile = "session.json"
)

// SessionState is the persisted chat session. The terminal client uses it to
// resume the last chat across invocations.
type SessionState struct {
	// ChatID is the ID of the active chat.
	ChatID string `json:"chat_id"`

	// Title is the active chat's title, kept for display without a lookup.
	Title string `json:"title,omitempty"`
}

// LoadSessionState loads the session state from a target .chorus/session.json.
// Returns nil, nil if no session exists (a fresh conversation).
// If overrideDir is non-empty, it is used instead of the default ~/.chorus/ location.
func (m *Manager) LoadSessionState(overrideDir string) (*SessionState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, sessionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	return &state, nil
}

// SaveSessionState persists the session state to .chorus/session.json.
func (m *Manager) SaveSessionState(overrideDir string, state *SessionState) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	path := filepath.Join(dir, sessionFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearSessionState removes the persisted session, if any.
func (m *Manager) ClearSessionState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(dir, sessionFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing session state: %w", err)
	}

	return nil
}
