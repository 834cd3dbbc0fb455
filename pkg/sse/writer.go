package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Flusher is the optional interface a destination writer may implement to
// force buffered bytes onto the wire after each frame.
type Flusher interface {
	Flush() error
}

// Writer frames events onto a downstream SSE channel. Each WriteEvent call
// emits exactly one frame and flushes it immediately. The Writer never
// batches or reorders, so upstream ordering guarantees carry through
// transitively to the client.
//
// Writer is safe for use from a single goroutine; the aggregator funnels all
// events through one channel before they reach the Writer, so no internal
// locking is needed for ordering. The mutex only guards against a concurrent
// Close.
type Writer struct {
	mu   sync.Mutex
	dest io.Writer
}

// NewWriter returns a Writer that frames events onto dest.
// If dest implements Flusher, every frame is flushed as it is written.
func NewWriter(dest io.Writer) *Writer {
	return &Writer{dest: dest}
}

// WriteEvent writes one SSE frame with the given event type and JSON-encoded
// payload, then flushes. The frame layout is:
//
//	event: <type>
//	data: <json payload>
//	<blank line>
func (w *Writer) WriteEvent(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event payload: %w", eventType, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.dest, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return fmt.Errorf("writing %s frame: %w", eventType, err)
	}

	if f, ok := w.dest.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flushing %s frame: %w", eventType, err)
		}
	}

	return nil
}
