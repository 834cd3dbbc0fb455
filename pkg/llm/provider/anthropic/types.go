package anthropic

// messagesRequest is the Anthropic Messages API request body.
type messagesRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
	MaxTokens int           `json:"max_tokens"`
	Stream    bool          `json:"stream"`
}

// chatMessage is an Anthropic-native message (text-only content form).
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent is a single SSE data payload from a streaming messages call.
// The Type field determines which other fields are populated.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *apiError `json:"error,omitempty"`
}

// errorResponse is the body returned on non-200 responses.
type errorResponse struct {
	Error *apiError `json:"error"`
}

// apiError is the provider's error payload.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
