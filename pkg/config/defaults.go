package config

const (
	defaultStorageDriver = "sqlite"
	defaultSQLitePath    = "chorus.db"

	defaultAPIListen       = ":8090"
	defaultClientAPITarget = "http://localhost:8090"

	defaultMaxTokens               = 1024
	defaultIncrementTimeoutSeconds = 30

	defaultOpenRouterTarget = "https://openrouter.ai/api/v1"
	defaultAnthropicTarget  = "https://api.anthropic.com"
	defaultOllamaTarget     = "http://localhost:11434"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "chorus.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver:     defaultStorageDriver,
			SQLitePath: defaultSQLitePath,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Chat: ChatConfig{
			MaxTokens:               defaultMaxTokens,
			IncrementTimeoutSeconds: defaultIncrementTimeoutSeconds,
		},
		Provider: ProviderConfig{
			OpenRouterTarget: defaultOpenRouterTarget,
			AnthropicTarget:  defaultAnthropicTarget,
			OllamaTarget:     defaultOllamaTarget,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
