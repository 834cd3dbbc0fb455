// Package ollama implements the provider.Streamer interface for a local
// Ollama server. Streaming responses arrive as newline-delimited JSON; the
// final line carries done=true.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/choruslabs/chorus/pkg/llm"
)

const defaultTarget = "http://localhost:11434"

// Config holds the Ollama connection settings.
type Config struct {
	Target     string
	HTTPClient *http.Client
}

// Client streams completions from an Ollama server.
type Client struct {
	config Config
}

// New creates a new Ollama streaming client.
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
	return "ollama"
}

// StreamCompletion opens a streaming chat call.
func (c *Client) StreamCompletion(ctx context.Context, model string, messages []llm.Message) (llm.Stream, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Target+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama request failed with status %d: %s", resp.StatusCode, raw)
	}

	scanner := bufio.NewScanner(resp.Body)
	// Increase buffer size for large chunks
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Stream{
		body:    resp.Body,
		scanner: scanner,
	}, nil
}

// Stream reads text increments from an Ollama NDJSON response body.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
	closed  bool
}

// Recv returns the next non-empty text increment.
// Returns io.EOF after the done=true line has been consumed.
func (s *Stream) Recv() (string, error) {
	if s.closed {
		return "", llm.ErrStreamClosed
	}
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("parsing stream chunk: %w", err)
		}

		if chunk.Error != "" {
			return "", fmt.Errorf("ollama stream error: %s", chunk.Error)
		}

		if chunk.Done {
			s.done = true
			// The final line occasionally carries trailing content.
			if chunk.Message.Content != "" {
				return chunk.Message.Content, nil
			}
			return "", io.EOF
		}

		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}

	return "", io.EOF
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
