// Package openrouter implements the provider.Streamer interface for
// OpenRouter's OpenAI-compatible chat completions API. Any backend that
// speaks the same SSE dialect can be reached by overriding Target.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/choruslabs/chorus/pkg/llm"
	"github.com/choruslabs/chorus/pkg/sse"
)

const (
	defaultTarget = "https://openrouter.ai/api/v1"

	// doneSentinel terminates an OpenAI-style SSE stream.
	doneSentinel = "[DONE]"
)

// Config holds the OpenRouter connection settings.
type Config struct {
	Target     string
	APIKey     string
	MaxTokens  int
	HTTPClient *http.Client
}

// Client streams completions from an OpenRouter-compatible endpoint.
type Client struct {
	config Config
}

// New creates a new OpenRouter streaming client.
func New(config Config) *Client {
	if config.Target == "" {
		config.Target = defaultTarget
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &Client{config: config}
}

func (c *Client) Name() string {
	return "openrouter"
}

// StreamCompletion opens a streaming chat completion call.
func (c *Client) StreamCompletion(ctx context.Context, model string, messages []llm.Message) (llm.Stream, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  msgs,
		Stream:    true,
		MaxTokens: c.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Target+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}

	return &Stream{
		body:   resp.Body,
		reader: sse.NewReader(resp.Body),
	}, nil
}

// parseErrorResponse extracts the provider error message from a non-200
// response body, falling back to the raw body text.
func parseErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != nil && er.Error.Message != "" {
		return fmt.Errorf("openrouter error (status %d): %s", resp.StatusCode, er.Error.Message)
	}

	return fmt.Errorf("openrouter request failed with status %d: %s", resp.StatusCode, raw)
}

// Stream reads text increments from an OpenAI-style SSE response body.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	closed bool
}

// Recv returns the next non-empty text increment.
// Returns io.EOF when the stream ends cleanly (the [DONE] sentinel or the
// underlying body closing without error).
func (s *Stream) Recv() (string, error) {
	if s.closed {
		return "", llm.ErrStreamClosed
	}

	for {
		ev, err := s.reader.Next()
		if err != nil {
			return "", fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil || ev.Data == doneSentinel {
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return "", fmt.Errorf("parsing stream chunk: %w", err)
		}

		if chunk.Error != nil {
			return "", fmt.Errorf("openrouter stream error: %s", chunk.Error.Message)
		}

		// Role-only and finish-reason-only chunks carry no text; skip them.
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		return chunk.Choices[0].Delta.Content, nil
	}
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
