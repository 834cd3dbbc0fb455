package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choruslabs/chorus/pkg/llm"
)

// sseHandler writes OpenAI-style SSE frames for the given increments,
// capturing the decoded request for assertions.
func sseHandler(increments []string, captured *chatRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, inc := range increments {
			payload, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": inc}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

// drain consumes the stream until io.EOF, returning the increments.
func drain(s llm.Stream) ([]string, error) {
	var out []string
	for {
		inc, err := s.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, inc)
	}
}

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("StreamCompletion", func() {
		It("streams increments in order until the [DONE] sentinel", func() {
			var req chatRequest
			srv := httptest.NewServer(sseHandler([]string{"Hello", ", ", "world"}, &req))
			defer srv.Close()

			client := New(Config{Target: srv.URL, APIKey: "test-key"})
			stream, err := client.StreamCompletion(ctx, "test-model", []llm.Message{llm.NewUserMessage("hi")})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			got, err := drain(stream)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]string{"Hello", ", ", "world"}))

			Expect(req.Model).To(Equal("test-model"))
			Expect(req.Stream).To(BeTrue())
			Expect(req.Messages).To(HaveLen(1))
			Expect(req.Messages[0].Content).To(Equal("hi"))
		})

		It("sends the bearer token", func() {
			var auth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
				sseHandler(nil, nil)(w, r)
			}))
			defer srv.Close()

			client := New(Config{Target: srv.URL, APIKey: "sk-test"})
			stream, err := client.StreamCompletion(ctx, "m", []llm.Message{llm.NewUserMessage("hi")})
			Expect(err).NotTo(HaveOccurred())
			stream.Close()

			Expect(auth).To(Equal("Bearer sk-test"))
		})

		It("skips role-only chunks with no text content", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
				fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"only\"}}]}\n\n")
				fmt.Fprint(w, "data: [DONE]\n\n")
			}))
			defer srv.Close()

			client := New(Config{Target: srv.URL})
			stream, err := client.StreamCompletion(ctx, "m", []llm.Message{llm.NewUserMessage("hi")})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			got, err := drain(stream)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]string{"only"}))
		})

		It("handles a zero-increment stream as clean exhaustion", func() {
			srv := httptest.NewServer(sseHandler(nil, nil))
			defer srv.Close()

			client := New(Config{Target: srv.URL})
			stream, err := client.StreamCompletion(ctx, "m", []llm.Message{llm.NewUserMessage("hi")})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			got, err := drain(stream)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})

		It("surfaces the provider error message on non-200 responses", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
			}))
			defer srv.Close()

			client := New(Config{Target: srv.URL})
			_, err := client.StreamCompletion(ctx, "m", []llm.Message{llm.NewUserMessage("hi")})
			Expect(err).To(MatchError(ContainSubstring("rate limited")))
		})

		It("returns ErrStreamClosed from Recv after Close", func() {
			srv := httptest.NewServer(sseHandler([]string{"x"}, nil))
			defer srv.Close()

			client := New(Config{Target: srv.URL})
			stream, err := client.StreamCompletion(ctx, "m", []llm.Message{llm.NewUserMessage("hi")})
			Expect(err).NotTo(HaveOccurred())

			Expect(stream.Close()).To(Succeed())
			_, err = stream.Recv()
			Expect(err).To(MatchError(llm.ErrStreamClosed))
		})
	})
})
