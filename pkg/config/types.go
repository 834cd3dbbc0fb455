package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent chorus configuration stored as config.toml
// in the .chorus/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Storage  StorageConfig  `toml:"storage"`
	API      APIConfig      `toml:"api"`
	Client   ClientConfig   `toml:"client"`
	Chat     ChatConfig     `toml:"chat"`
	Provider ProviderConfig `toml:"provider"`
	Events   EventsConfig   `toml:"events"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Driver selects the storage backend: "sqlite", "postgres", or "inmemory".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// API server (e.g. chorus chat, chorus models).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// ChatConfig holds fan-out settings.
type ChatConfig struct {
	// MaxTokens bounds each source's completion where the provider requires
	// an explicit limit.
	MaxTokens uint `toml:"max_tokens,omitempty"`

	// IncrementTimeoutSeconds bounds the wait for each streamed increment
	// before a source is failed.
	IncrementTimeoutSeconds uint `toml:"increment_timeout_seconds,omitempty"`
}

// ProviderConfig holds upstream provider endpoints. API keys are read from
// the environment (OPENROUTER_API_KEY, ANTHROPIC_API_KEY), never persisted.
type ProviderConfig struct {
	OpenRouterTarget string `toml:"openrouter_target,omitempty"`
	AnthropicTarget  string `toml:"anthropic_target,omitempty"`
	OllamaTarget     string `toml:"ollama_target,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	// Provider selects the publisher backend: "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma-separated list of Kafka broker addresses.
	Brokers string `toml:"brokers,omitempty"`

	Topic string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"chat.max_tokens": {
		get: func(c *Config) string {
			if c.Chat.MaxTokens == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Chat.MaxTokens), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chat.max_tokens: %w", err)
			}
			c.Chat.MaxTokens = uint(n)
			return nil
		},
	},
	"chat.increment_timeout_seconds": {
		get: func(c *Config) string {
			if c.Chat.IncrementTimeoutSeconds == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Chat.IncrementTimeoutSeconds), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chat.increment_timeout_seconds: %w", err)
			}
			c.Chat.IncrementTimeoutSeconds = uint(n)
			return nil
		},
	},
	"provider.openrouter_target": {
		get: func(c *Config) string { return c.Provider.OpenRouterTarget },
		set: func(c *Config, v string) error { c.Provider.OpenRouterTarget = v; return nil },
	},
	"provider.anthropic_target": {
		get: func(c *Config) string { return c.Provider.AnthropicTarget },
		set: func(c *Config, v string) error { c.Provider.AnthropicTarget = v; return nil },
	},
	"provider.ollama_target": {
		get: func(c *Config) string { return c.Provider.OllamaTarget },
		set: func(c *Config, v string) error { c.Provider.OllamaTarget = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
