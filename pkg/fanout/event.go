package fanout

// Event type names as they appear on the wire.
const (
	TypeStart    = "start"
	TypeChunk    = "chunk"
	TypeComplete = "complete"
	TypeError    = "error"
	TypeEnd      = "end"
)

// Event is one item on the aggregated stream. Each payload carries its own
// type field so line-oriented clients that only read data lines can still
// dispatch on it.
type Event interface {
	EventType() string
}

// SourceInfo identifies a dispatched source in the start event.
type SourceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StartEvent opens the stream with the full list of dispatched sources.
type StartEvent struct {
	Type    string       `json:"type"`
	Sources []SourceInfo `json:"sources"`
}

func (e StartEvent) EventType() string { return TypeStart }

// ChunkEvent carries one text increment for a source, along with the
// source's accumulated text so far.
type ChunkEvent struct {
	Type        string `json:"type"`
	Source      string `json:"source"`
	Increment   string `json:"increment"`
	Accumulated string `json:"accumulated"`
}

func (e ChunkEvent) EventType() string { return TypeChunk }

// CompleteEvent is a source's terminal success, carrying its full text.
type CompleteEvent struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

func (e CompleteEvent) EventType() string { return TypeComplete }

// ErrorEvent is a source's terminal failure. A turn-level failure (such as a
// persistence error) carries an empty source.
type ErrorEvent struct {
	Type    string `json:"type"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (e ErrorEvent) EventType() string { return TypeError }

// EndEvent closes the stream after all sources are terminal and persistence
// has been attempted.
type EndEvent struct {
	Type string `json:"type"`
}

func (e EndEvent) EventType() string { return TypeEnd }

func newStart(sources []SourceInfo) StartEvent {
	return StartEvent{Type: TypeStart, Sources: sources}
}

func newChunk(source, increment, accumulated string) ChunkEvent {
	return ChunkEvent{Type: TypeChunk, Source: source, Increment: increment, Accumulated: accumulated}
}

func newComplete(source, text string) CompleteEvent {
	return CompleteEvent{Type: TypeComplete, Source: source, Text: text}
}

func newError(source, message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Source: source, Message: message}
}

func newEnd() EndEvent {
	return EndEvent{Type: TypeEnd}
}
