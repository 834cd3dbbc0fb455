// Package chat holds the turn data model shared by the fan-out aggregator,
// the storage layer, and the API. A turn is one user message plus the set of
// per-source responses it produced.
package chat

// Response is one source's answer within a turn. Text grows append-only while
// the source streams; Done flips once and the response is never mutated after
// that. Each source goroutine is the sole writer of its own Response.
type Response struct {
	Text string
	Done bool
	Err  string
}

// Failed reports whether the response ended in an error.
func (r *Response) Failed() bool {
	return r.Err != ""
}

// Turn is one user message and the responses it drew, keyed by source ID.
// The order slice preserves the registry order sources were dispatched in.
type Turn struct {
	ID        string
	UserText  string
	Responses map[string]*Response

	order []string
}

// NewTurn creates a turn for the given user text.
func NewTurn(id, userText string) *Turn {
	return &Turn{
		ID:        id,
		UserText:  userText,
		Responses: make(map[string]*Response),
	}
}

// AddResponse registers a response for the given source, preserving insertion
// order for iteration.
func (t *Turn) AddResponse(sourceID string, resp *Response) {
	if _, ok := t.Responses[sourceID]; !ok {
		t.order = append(t.order, sourceID)
	}
	t.Responses[sourceID] = resp
}

// Response returns the response for the given source, or nil.
func (t *Turn) Response(sourceID string) *Response {
	return t.Responses[sourceID]
}

// SourceIDs returns the source IDs in the order their responses were added.
func (t *Turn) SourceIDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
