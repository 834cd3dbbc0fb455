// Package anthropic implements the provider.Streamer interface for the
// Anthropic Messages API. Streaming responses arrive as typed SSE events;
// text increments are carried by content_block_delta events and the stream
// ends at message_stop.
package anthropic

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
	defaultTarget = "https://api.anthropic.com"

	// apiVersion is the required anthropic-version header value.
	apiVersion = "2023-06-01"

	// defaultMaxTokens applies when the config leaves MaxTokens unset;
	// the Messages API requires an explicit bound.
	defaultMaxTokens = 1024
)

// Config holds the Anthropic connection settings.
type Config struct {
	Target     string
	APIKey     string
	MaxTokens  int
	HTTPClient *http.Client
}

// Client streams completions from the Anthropic Messages API.
type Client struct {
	config Config
}

// New creates a new Anthropic streaming client.
func New(config Config) *Client {
	if config.Target == "" {
		config.Target = defaultTarget
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaultMaxTokens
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &Client{config: config}
}

func (c *Client) Name() string {
	return "anthropic"
}

// StreamCompletion opens a streaming messages call.
// A leading system-role message is lifted into the request's system field,
// since the Messages API carries the system prompt separately.
func (c *Client) StreamCompletion(ctx context.Context, model string, messages []llm.Message) (llm.Stream, error) {
	var system string
	msgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = m.Content
			continue
		}
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(messagesRequest{
		Model:     model,
		Messages:  msgs,
		System:    system,
		MaxTokens: c.config.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Target+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("anthropic-version", apiVersion)
	if c.config.APIKey != "" {
		req.Header.Set("x-api-key", c.config.APIKey)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
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
		return fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, er.Error.Message)
	}

	return fmt.Errorf("anthropic request failed with status %d: %s", resp.StatusCode, raw)
}

// Stream reads text increments from an Anthropic SSE response body.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	closed bool
}

// Recv returns the next text increment from content_block_delta events.
// Returns io.EOF at message_stop or when the body closes cleanly.
func (s *Stream) Recv() (string, error) {
	if s.closed {
		return "", llm.ErrStreamClosed
	}

	for {
		ev, err := s.reader.Next()
		if err != nil {
			return "", fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return "", io.EOF
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			return "", fmt.Errorf("parsing stream event: %w", err)
		}

		switch event.Type {
		case "message_stop":
			return "", io.EOF
		case "error":
			msg := "unknown stream error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			return "", fmt.Errorf("anthropic stream error: %s", msg)
		case "content_block_delta":
			if event.Delta.Text != "" {
				return event.Delta.Text, nil
			}
			// Non-text deltas (e.g. input_json_delta) carry no increment.
		default:
			// message_start, content_block_start/stop, message_delta, ping:
			// bookkeeping only.
		}
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
