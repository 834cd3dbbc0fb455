package api

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/choruslabs/chorus/pkg/chat"
	"github.com/choruslabs/chorus/pkg/fanout"
	"github.com/choruslabs/chorus/pkg/llm"
	"github.com/choruslabs/chorus/pkg/llm/source"
	"github.com/choruslabs/chorus/pkg/sse"
	"github.com/choruslabs/chorus/pkg/storage"
)

// ChatRequest is the body of the streaming and non-streaming chat routes.
// An empty ChatID runs an ephemeral turn that is streamed but not persisted.
// Empty SourceIDs dispatches to every registered source.
type ChatRequest struct {
	ChatID    string   `json:"chat_id"`
	Message   string   `json:"message"`
	SourceIDs []string `json:"source_ids"`
}

// ChatResponse is the aggregate result of a non-streaming chat call.
type ChatResponse struct {
	Responses []SourceResult `json:"responses"`
	Error     string         `json:"error,omitempty"`
}

// SourceResult is one source's final outcome in a non-streaming chat call.
type SourceResult struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

// resolveFanout validates the request body and assembles the fan-out request,
// loading prior turns when a chat is given. A nil request with a nil error
// means the response has already been written.
func (s *Server) resolveFanout(c *fiber.Ctx, req ChatRequest) (*fanout.Request, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "message is required"})
	}

	var sources []source.Source
	if len(req.SourceIDs) == 0 {
		sources = s.registry.All()
	} else {
		var err error
		sources, err = s.registry.Subset(req.SourceIDs)
		if err != nil {
			return nil, c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
		}
	}

	var prior []*chat.Turn
	if req.ChatID != "" {
		var err error
		prior, err = s.store.ListTurns(c.Context(), req.ChatID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "chat not found"})
		}
		if err != nil {
			s.logger.Error("failed to load chat history", zap.Error(err))
			return nil, c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to load chat history"})
		}
	}

	return &fanout.Request{
		ChatID:     req.ChatID,
		PriorTurns: prior,
		Text:       req.Message,
		Sources:    sources,
	}, nil
}

// handleChatStream fans the message out and streams the aggregated events as
// SSE over a chunked response.
func (s *Server) handleChatStream(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	fanReq, err := s.resolveFanout(c, req)
	if fanReq == nil {
		return err
	}

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, while the bridge
	// goroutine keeps streaming. Client disconnects surface as pipe write
	// failures, which cancel the fan-out.
	ctx, cancel := context.WithCancel(context.Background())

	events, err := s.aggregator.Run(ctx, *fanReq)
	if err != nil {
		cancel()
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe gives real backpressure: pw.Write blocks until fasthttp has
	// flushed the chunk to the socket, so a dead client fails the write.
	pr, pw := io.Pipe()
	go s.bridgeEvents(events, pw, cancel)

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// bridgeEvents encodes aggregator events onto the pipe as SSE frames. A write
// failure means the client hung up: the fan-out is cancelled and the channel
// drained so source goroutines can exit.
func (s *Server) bridgeEvents(events <-chan fanout.Event, pw *io.PipeWriter, cancel context.CancelFunc) {
	defer pw.Close()
	defer cancel()

	w := sse.NewWriter(pw)
	for ev := range events {
		if err := w.WriteEvent(ev.EventType(), ev); err != nil {
			s.logger.Debug("client disconnected mid-stream", zap.Error(err))
			cancel()
			for range events {
			}
			return
		}
	}
}

// handleChat runs the same fan-out but drains it internally and returns the
// final per-source results in one response.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	fanReq, err := s.resolveFanout(c, req)
	if fanReq == nil {
		return err
	}

	events, err := s.aggregator.Run(c.Context(), *fanReq)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	results := make(map[string]SourceResult)
	var turnErr string
	for ev := range events {
		switch e := ev.(type) {
		case fanout.CompleteEvent:
			results[e.Source] = SourceResult{Source: e.Source, Text: e.Text}
		case fanout.ErrorEvent:
			if e.Source == "" {
				turnErr = e.Message
				continue
			}
			results[e.Source] = SourceResult{Source: e.Source, Error: e.Message}
		}
	}

	resp := ChatResponse{Responses: []SourceResult{}, Error: turnErr}
	for _, src := range fanReq.Sources {
		if result, ok := results[src.ID]; ok {
			resp.Responses = append(resp.Responses, result)
		}
	}

	return c.JSON(resp)
}
