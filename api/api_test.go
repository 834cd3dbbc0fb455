package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/choruslabs/chorus/pkg/fanout"
	"github.com/choruslabs/chorus/pkg/llm"
	"github.com/choruslabs/chorus/pkg/llm/provider"
	"github.com/choruslabs/chorus/pkg/llm/source"
	"github.com/choruslabs/chorus/pkg/sse"
	"github.com/choruslabs/chorus/pkg/storage"
	"github.com/choruslabs/chorus/pkg/storage/inmemory"
)

// scriptedStream replays fixed increments then ends cleanly.
type scriptedStream struct {
	mu   sync.Mutex
	incs []string
	idx  int
}

func (s *scriptedStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.incs) {
		return "", io.EOF
	}
	inc := s.incs[s.idx]
	s.idx++
	return inc, nil
}

func (s *scriptedStream) Close() error { return nil }

// scriptedStreamer hands each model a fresh scripted stream.
type scriptedStreamer struct {
	increments map[string][]string
}

func (f *scriptedStreamer) Name() string { return "fake" }

func (f *scriptedStreamer) StreamCompletion(_ context.Context, model string, _ []llm.Message) (llm.Stream, error) {
	incs, ok := f.increments[model]
	if !ok {
		return nil, fmt.Errorf("no script for model %q", model)
	}
	return &scriptedStream{incs: incs}, nil
}

// decodedEvent is one parsed SSE frame from the streaming route.
type decodedEvent struct {
	eventType string
	payload   map[string]any
}

func decodeSSE(body []byte) []decodedEvent {
	reader := sse.NewReader(bytes.NewReader(body))

	var out []decodedEvent
	for {
		ev, err := reader.Next()
		Expect(err).NotTo(HaveOccurred())
		if ev == nil {
			return out
		}

		var payload map[string]any
		Expect(json.Unmarshal([]byte(ev.Data), &payload)).To(Succeed())
		out = append(out, decodedEvent{eventType: ev.Type, payload: payload})
	}
}

func jsonRequest(method, path string, payload any) *http.Request {
	body, err := json.Marshal(payload)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	return req
}

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *inmemory.Store
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()

		registry, err := source.NewRegistry([]source.Source{
			{ID: "alpha", Name: "Alpha", Provider: "fake", Model: "model-alpha"},
			{ID: "beta", Name: "Beta", Provider: "fake", Model: "model-beta"},
		})
		Expect(err).NotTo(HaveOccurred())

		streamer := &scriptedStreamer{increments: map[string][]string{
			"model-alpha": {"Hello", " from alpha"},
			"model-beta":  {"beta says hi"},
		}}

		aggregator, err := fanout.New(fanout.Config{
			Providers: map[string]provider.Streamer{"fake": streamer},
			Store:     store,
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		logger, _ := zap.NewDevelopment()
		server = NewServer(Config{ListenAddr: ":0"}, store, registry, aggregator, logger)
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(ContainSubstring("pong"))
		})
	})

	Describe("GET /api/models", func() {
		It("lists the registry", func() {
			req, _ := http.NewRequest(http.MethodGet, "/api/models", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got struct {
				Count  int         `json:"count"`
				Models []ModelInfo `json:"models"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&got)).To(Succeed())
			Expect(got.Count).To(Equal(2))
			Expect(got.Models[0].ID).To(Equal("alpha"))
			Expect(got.Models[1].Provider).To(Equal("fake"))
		})
	})

	Describe("chat CRUD", func() {
		It("creates a chat with the given title", func() {
			req := jsonRequest(http.MethodPost, "/api/chats", map[string]string{"title": "my chat"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
			Expect(created["title"]).To(Equal("my chat"))
			Expect(created["id"]).NotTo(BeEmpty())
		})

		It("defaults the title when none is given", func() {
			req := jsonRequest(http.MethodPost, "/api/chats", map[string]string{})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
			Expect(created["title"]).To(Equal(defaultChatTitle))
		})

		It("lists created chats", func() {
			_, err := store.CreateChat(ctx, "one")
			Expect(err).NotTo(HaveOccurred())

			req, _ := http.NewRequest(http.MethodGet, "/api/chats", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())

			var got struct {
				Count int `json:"count"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&got)).To(Succeed())
			Expect(got.Count).To(Equal(1))
		})

		It("returns a chat with its turns", func() {
			c, err := store.CreateChat(ctx, "history")
			Expect(err).NotTo(HaveOccurred())
			turnID, err := store.CreateTurn(ctx, c.ID, "question")
			Expect(err).NotTo(HaveOccurred())
			err = store.AppendResponses(ctx, turnID, []storage.SourceResponse{{SourceID: "alpha", Text: "answer"}})
			Expect(err).NotTo(HaveOccurred())

			req, _ := http.NewRequest(http.MethodGet, "/api/chats/"+c.ID, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var detail ChatDetail
			Expect(json.NewDecoder(resp.Body).Decode(&detail)).To(Succeed())
			Expect(detail.Chat.ID).To(Equal(c.ID))
			Expect(detail.Turns).To(HaveLen(1))
			Expect(detail.Turns[0].UserText).To(Equal("question"))
		})

		It("404s for a missing chat", func() {
			req, _ := http.NewRequest(http.MethodGet, "/api/chats/nope", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("deletes a chat", func() {
			c, err := store.CreateChat(ctx, "doomed")
			Expect(err).NotTo(HaveOccurred())

			req, _ := http.NewRequest(http.MethodDelete, "/api/chats/"+c.ID, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			req, _ = http.NewRequest(http.MethodGet, "/api/chats/"+c.ID, nil)
			resp, err = server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /api/chat/stream", func() {
		It("rejects an empty message", func() {
			req := jsonRequest(http.MethodPost, "/api/chat/stream", ChatRequest{Message: "  "})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects unknown source ids", func() {
			req := jsonRequest(http.MethodPost, "/api/chat/stream", ChatRequest{
				Message:   "hi",
				SourceIDs: []string{"nope"},
			})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("404s for an unknown chat", func() {
			req := jsonRequest(http.MethodPost, "/api/chat/stream", ChatRequest{
				ChatID:  "nope",
				Message: "hi",
			})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("streams start, per-source events, and end, then persists the turn", func() {
			c, err := store.CreateChat(ctx, "stream chat")
			Expect(err).NotTo(HaveOccurred())

			req := jsonRequest(http.MethodPost, "/api/chat/stream", ChatRequest{
				ChatID:  c.ID,
				Message: "hello",
			})
			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			events := decodeSSE(body)
			Expect(events[0].eventType).To(Equal("start"))
			Expect(events[0].payload["type"]).To(Equal("start"))
			Expect(events[0].payload["sources"]).To(HaveLen(2))
			Expect(events[len(events)-1].eventType).To(Equal("end"))

			var alphaChunks []string
			var alphaComplete string
			for _, ev := range events {
				if ev.payload["source"] != "alpha" {
					continue
				}
				switch ev.eventType {
				case "chunk":
					alphaChunks = append(alphaChunks, ev.payload["increment"].(string))
				case "complete":
					alphaComplete = ev.payload["text"].(string)
				}
			}
			Expect(alphaChunks).To(Equal([]string{"Hello", " from alpha"}))
			Expect(alphaComplete).To(Equal("Hello from alpha"))

			turns, err := store.ListTurns(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Response("alpha").Text).To(Equal("Hello from alpha"))
			Expect(turns[0].Response("beta").Text).To(Equal("beta says hi"))
		})

		It("streams an ephemeral turn without persisting", func() {
			req := jsonRequest(http.MethodPost, "/api/chat/stream", ChatRequest{
				Message:   "hello",
				SourceIDs: []string{"alpha"},
			})
			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			events := decodeSSE(body)
			Expect(events[len(events)-1].eventType).To(Equal("end"))

			chats, err := store.ListChats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(chats).To(BeEmpty())
		})
	})

	Describe("POST /api/chat", func() {
		It("returns the aggregated per-source results", func() {
			req := jsonRequest(http.MethodPost, "/api/chat", ChatRequest{Message: "hello"})
			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got ChatResponse
			Expect(json.NewDecoder(resp.Body).Decode(&got)).To(Succeed())
			Expect(got.Responses).To(Equal([]SourceResult{
				{Source: "alpha", Text: "Hello from alpha"},
				{Source: "beta", Text: "beta says hi"},
			}))
		})
	})
})
