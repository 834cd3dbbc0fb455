// Package sse provides minimal SSE (Server-Sent Events) reading and writing
// for chorus. The Reader parses events from an upstream LLM provider stream;
// the Writer frames aggregator events onto the downstream client channel,
// flushing each frame immediately so perceived streaming latency stays low.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}
