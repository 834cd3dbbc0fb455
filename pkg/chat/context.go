package chat

import "github.com/choruslabs/chorus/pkg/llm"

// BuildSourceContext assembles the message history one source sees for a new
// user message. For each prior turn it includes the user message and, if that
// source produced a completed non-error response, that source's own answer.
// A source never sees another source's text, and a turn the source failed or
// never finished contributes only its user message.
func BuildSourceContext(prior []*Turn, current string, sourceID string) []llm.Message {
	messages := make([]llm.Message, 0, 2*len(prior)+1)

	for _, turn := range prior {
		messages = append(messages, llm.NewUserMessage(turn.UserText))

		resp := turn.Response(sourceID)
		if resp == nil || !resp.Done || resp.Failed() {
			continue
		}
		messages = append(messages, llm.NewAssistantMessage(resp.Text))
	}

	return append(messages, llm.NewUserMessage(current))
}
