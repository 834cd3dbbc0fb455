package provider

import (
	"fmt"
	"net/http"
	"time"

	"github.com/choruslabs/chorus/pkg/llm/provider/anthropic"
	"github.com/choruslabs/chorus/pkg/llm/provider/ollama"
	"github.com/choruslabs/chorus/pkg/llm/provider/openrouter"
)

// Supported provider type constants
const (
	OpenRouter = "openrouter"
	Anthropic  = "anthropic"
	Ollama     = "ollama"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{OpenRouter, Anthropic, Ollama}
}

// Config holds the connection settings for a provider backend.
type Config struct {
	// Target is the backend base URL. Empty uses the provider's default.
	Target string

	// APIKey authenticates requests for hosted providers.
	APIKey string

	// MaxTokens bounds completion length. Zero uses the provider default.
	MaxTokens int

	// HTTPClient overrides the default client (used by tests).
	HTTPClient *http.Client
}

// NewHTTPClient returns the configured HTTP client, or a default with a
// generous timeout since LLM streams can stay open for minutes.
func (c Config) NewHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

// New creates a Streamer for the given provider type.
// Returns an error if the provider type is not recognized.
func New(providerType string, cfg Config) (Streamer, error) {
	switch providerType {
	case OpenRouter:
		return openrouter.New(openrouter.Config{
			Target:     cfg.Target,
			APIKey:     cfg.APIKey,
			MaxTokens:  cfg.MaxTokens,
			HTTPClient: cfg.NewHTTPClient(),
		}), nil
	case Anthropic:
		return anthropic.New(anthropic.Config{
			Target:     cfg.Target,
			APIKey:     cfg.APIKey,
			MaxTokens:  cfg.MaxTokens,
			HTTPClient: cfg.NewHTTPClient(),
		}), nil
	case Ollama:
		return ollama.New(ollama.Config{
			Target:     cfg.Target,
			HTTPClient: cfg.NewHTTPClient(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}
