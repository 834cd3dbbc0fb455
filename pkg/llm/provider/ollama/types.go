package ollama

// chatRequest is the Ollama-native chat request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatMessage is an Ollama-native message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamChunk is a single NDJSON line from a streaming chat response.
type streamChunk struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}
