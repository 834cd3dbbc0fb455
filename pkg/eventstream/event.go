package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnPersisted is emitted after a conversation turn is persisted.
	EventTypeTurnPersisted = "chorus.turn.persisted"
)

// TurnPersistedEvent is a transport-neutral event payload for a persisted turn.
type TurnPersistedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	ChatID        string         `json:"chat_id"`
	TurnID        string         `json:"turn_id"`
	UserText      string         `json:"user_text"`
	Responses     []TurnResponse `json:"responses"`
	Meta          TurnMeta       `json:"meta"`
}

// TurnResponse is one source's persisted answer within the event payload.
type TurnResponse struct {
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
}

// TurnMeta captures fan-out lifecycle metadata for the event.
type TurnMeta struct {
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMs    int64     `json:"duration_ms"`
	SourceCount   int       `json:"source_count"`
	FailedSources []string  `json:"failed_sources,omitempty"`
}
