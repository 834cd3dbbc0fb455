// Package provider defines the interface for streaming chat completions from
// upstream LLM backends. Each provider implementation knows how to speak its
// backend's wire format (SSE or NDJSON) and expose the response as a flat
// sequence of text increments.
package provider

import (
	"context"

	"github.com/choruslabs/chorus/pkg/llm"
)

// Streamer opens streaming text completions against one provider backend.
// A single Streamer serves every source routed to its provider type; the
// model name is passed per call.
type Streamer interface {
	// Name returns the canonical provider name (e.g. "openrouter",
	// "anthropic", "ollama").
	Name() string

	// StreamCompletion opens a streaming generation call for the given model
	// and conversation. The returned stream is finite and not restartable.
	// Transport and provider errors during setup are returned here; errors
	// mid-stream surface from Stream.Recv.
	StreamCompletion(ctx context.Context, model string, messages []llm.Message) (llm.Stream, error)
}
