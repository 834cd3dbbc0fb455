package chat_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choruslabs/chorus/pkg/chat"
	"github.com/choruslabs/chorus/pkg/llm"
)

func turnWith(userText string, responses map[string]*chat.Response) *chat.Turn {
	t := chat.NewTurn("", userText)
	for id, resp := range responses {
		t.AddResponse(id, resp)
	}
	return t
}

var _ = Describe("BuildSourceContext", func() {
	It("returns only the current message when there is no history", func() {
		msgs := chat.BuildSourceContext(nil, "hello", "gpt")

		Expect(msgs).To(Equal([]llm.Message{llm.NewUserMessage("hello")}))
	})

	It("interleaves prior user messages with the source's own answers", func() {
		prior := []*chat.Turn{
			turnWith("first", map[string]*chat.Response{
				"gpt": {Text: "answer one", Done: true},
			}),
			turnWith("second", map[string]*chat.Response{
				"gpt": {Text: "answer two", Done: true},
			}),
		}

		msgs := chat.BuildSourceContext(prior, "third", "gpt")

		Expect(msgs).To(Equal([]llm.Message{
			llm.NewUserMessage("first"),
			llm.NewAssistantMessage("answer one"),
			llm.NewUserMessage("second"),
			llm.NewAssistantMessage("answer two"),
			llm.NewUserMessage("third"),
		}))
	})

	It("never includes another source's answer", func() {
		prior := []*chat.Turn{
			turnWith("question", map[string]*chat.Response{
				"claude": {Text: "claude's answer", Done: true},
			}),
		}

		msgs := chat.BuildSourceContext(prior, "followup", "gpt")

		Expect(msgs).To(Equal([]llm.Message{
			llm.NewUserMessage("question"),
			llm.NewUserMessage("followup"),
		}))
	})

	It("skips the assistant message for turns the source failed", func() {
		prior := []*chat.Turn{
			turnWith("question", map[string]*chat.Response{
				"gpt": {Text: "partial", Done: true, Err: "timeout"},
			}),
		}

		msgs := chat.BuildSourceContext(prior, "followup", "gpt")

		Expect(msgs).To(Equal([]llm.Message{
			llm.NewUserMessage("question"),
			llm.NewUserMessage("followup"),
		}))
	})

	It("skips the assistant message for turns the source never finished", func() {
		prior := []*chat.Turn{
			turnWith("question", map[string]*chat.Response{
				"gpt": {Text: "partial", Done: false},
			}),
		}

		msgs := chat.BuildSourceContext(prior, "followup", "gpt")

		Expect(msgs).To(Equal([]llm.Message{
			llm.NewUserMessage("question"),
			llm.NewUserMessage("followup"),
		}))
	})

	It("includes an empty completed answer as an empty assistant message", func() {
		prior := []*chat.Turn{
			turnWith("question", map[string]*chat.Response{
				"gpt": {Text: "", Done: true},
			}),
		}

		msgs := chat.BuildSourceContext(prior, "followup", "gpt")

		Expect(msgs).To(Equal([]llm.Message{
			llm.NewUserMessage("question"),
			llm.NewAssistantMessage(""),
			llm.NewUserMessage("followup"),
		}))
	})
})

var _ = Describe("Turn", func() {
	It("preserves response insertion order", func() {
		t := chat.NewTurn("t1", "hi")
		t.AddResponse("b", &chat.Response{Text: "second", Done: true})
		t.AddResponse("a", &chat.Response{Text: "first", Done: true})

		Expect(t.SourceIDs()).To(Equal([]string{"b", "a"}))
	})

	It("replaces a response without duplicating its order entry", func() {
		t := chat.NewTurn("t1", "hi")
		t.AddResponse("a", &chat.Response{})
		t.AddResponse("a", &chat.Response{Text: "updated", Done: true})

		Expect(t.SourceIDs()).To(Equal([]string{"a"}))
		Expect(t.Response("a").Text).To(Equal("updated"))
	})
})
