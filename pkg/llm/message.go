// Package llm holds the provider-agnostic chat types shared by the upstream
// streaming clients and the fan-out aggregator.
package llm

// Role values for chat messages, normalized across providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
// Content is plain text; chorus compares text completions and does not
// carry multimodal blocks through to the providers.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // message text
}

// NewUserMessage creates a user-role message with the given text.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates an assistant-role message with the given text.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}
