// Package fanout dispatches one user message to several sources concurrently
// and multiplexes their streamed responses onto a single event channel.
//
// Each source runs in its own goroutine and owns its own response; events for
// one source are totally ordered while sources interleave freely. When every
// source has reached a terminal state the turn is persisted exactly once and
// the channel ends.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/choruslabs/chorus/pkg/chat"
	"github.com/choruslabs/chorus/pkg/eventstream"
	"github.com/choruslabs/chorus/pkg/llm/provider"
	"github.com/choruslabs/chorus/pkg/llm/source"
	"github.com/choruslabs/chorus/pkg/storage"
	"github.com/choruslabs/chorus/pkg/worker"
)

const defaultIncrementTimeout = 30 * time.Second

var (
	// ErrEmptyMessage is returned when the user text is empty or whitespace.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrNoSources is returned when no sources were selected.
	ErrNoSources = errors.New("no sources selected")
)

// Config is the configuration options for the aggregator.
type Config struct {
	// Providers maps provider type to its streaming client.
	Providers map[string]provider.Streamer

	// Store persists completed turns. Optional; without it every turn is
	// ephemeral.
	Store storage.Store

	// Pool asynchronously publishes turn events after persistence. Optional.
	Pool *worker.Pool

	// IncrementTimeout bounds the wait for each increment from a source
	// (defaults to 30s). A stalled source fails alone.
	IncrementTimeout time.Duration

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Request describes one fan-out turn.
type Request struct {
	// ChatID is the chat the turn belongs to. Empty means ephemeral: the
	// turn streams but is never persisted.
	ChatID string

	// PriorTurns is the chat history used to build per-source context.
	PriorTurns []*chat.Turn

	// Text is the user's message.
	Text string

	// Sources are the sources to dispatch to.
	Sources []source.Source
}

// Aggregator fans a user message out to sources and aggregates the streams.
type Aggregator struct {
	config Config
}

// New creates an aggregator.
func New(config Config) (*Aggregator, error) {
	if len(config.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if config.IncrementTimeout <= 0 {
		config.IncrementTimeout = defaultIncrementTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Aggregator{config: config}, nil
}

// Run validates the request, then starts the fan-out and returns the event
// channel. The channel is closed after the end event, or when ctx is
// cancelled. A cancelled turn is never persisted.
func (a *Aggregator) Run(ctx context.Context, req Request) (<-chan Event, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyMessage
	}
	if len(req.Sources) == 0 {
		return nil, ErrNoSources
	}
	for _, src := range req.Sources {
		if _, ok := a.config.Providers[src.Provider]; !ok {
			return nil, fmt.Errorf("no client for provider %q (source %q)", src.Provider, src.ID)
		}
	}

	events := make(chan Event, 64)
	go a.run(ctx, req, events)

	return events, nil
}

func (a *Aggregator) run(ctx context.Context, req Request, events chan<- Event) {
	startedAt := time.Now().UTC()

	infos := make([]SourceInfo, len(req.Sources))
	for i, src := range req.Sources {
		infos[i] = SourceInfo{ID: src.ID, Name: src.Name}
	}
	a.emit(ctx, events, newStart(infos))

	// The turn is assembled up front so each source goroutine writes only
	// its own response.
	turn := chat.NewTurn("", req.Text)
	for _, src := range req.Sources {
		turn.AddResponse(src.ID, &chat.Response{})
	}

	var completed atomic.Int32
	total := int32(len(req.Sources))

	for _, src := range req.Sources {
		go func(src source.Source) {
			a.streamSource(ctx, req, src, turn.Response(src.ID), events)

			if completed.Add(1) == total {
				a.finalize(ctx, req, turn, startedAt, events)
				close(events)
			}
		}(src)
	}
}

// streamSource runs one source to its terminal event. It is the only writer
// of resp.
func (a *Aggregator) streamSource(ctx context.Context, req Request, src source.Source, resp *chat.Response, events chan<- Event) {
	logger := a.config.Logger.With(zap.String("source", src.ID))

	messages := chat.BuildSourceContext(req.PriorTurns, req.Text, src.ID)

	streamer := a.config.Providers[src.Provider]
	stream, err := streamer.StreamCompletion(ctx, src.ModelName(), messages)
	if err != nil {
		logger.Warn("stream open failed", zap.Error(err))
		resp.Err = err.Error()
		resp.Done = true
		a.emit(ctx, events, newError(src.ID, resp.Err))
		return
	}
	defer stream.Close()

	type recvResult struct {
		increment string
		err       error
	}

	// The pump goroutine turns the blocking Recv loop into channel receives
	// so the select below can race increments against the timeout and ctx.
	// Closing the stream unblocks a pending Recv.
	results := make(chan recvResult, 1)
	go func() {
		defer close(results)
		for {
			inc, err := stream.Recv()
			select {
			case results <- recvResult{increment: inc, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(a.config.IncrementTimeout)
	defer timer.Stop()

	for {
		select {
		case res := <-results:
			switch {
			case res.err == nil:
				resp.Text += res.increment
				a.emit(ctx, events, newChunk(src.ID, res.increment, resp.Text))

				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(a.config.IncrementTimeout)

			case errors.Is(res.err, io.EOF):
				resp.Done = true
				a.emit(ctx, events, newComplete(src.ID, resp.Text))
				logger.Debug("source complete", zap.Int("chars", len(resp.Text)))
				return

			default:
				logger.Warn("source stream failed", zap.Error(res.err))
				resp.Err = res.err.Error()
				resp.Done = true
				a.emit(ctx, events, newError(src.ID, resp.Err))
				return
			}

		case <-timer.C:
			logger.Warn("source timed out waiting for increment",
				zap.Duration("timeout", a.config.IncrementTimeout))
			stream.Close()
			resp.Err = fmt.Sprintf("timed out after %s waiting for response", a.config.IncrementTimeout)
			resp.Done = true
			a.emit(ctx, events, newError(src.ID, resp.Err))
			return

		case <-ctx.Done():
			stream.Close()
			return
		}
	}
}

// finalize runs once, in the goroutine of the last source to finish. It
// persists the turn, hands the event to the publish pool, and ends the
// stream. A cancelled turn is neither persisted nor ended.
func (a *Aggregator) finalize(ctx context.Context, req Request, turn *chat.Turn, startedAt time.Time, events chan<- Event) {
	if ctx.Err() != nil {
		return
	}

	if req.ChatID != "" && a.config.Store != nil {
		turnID, err := a.persist(ctx, req, turn)
		if err != nil {
			a.config.Logger.Error("turn persistence failed",
				zap.String("chat_id", req.ChatID),
				zap.Error(err),
			)
			a.emit(ctx, events, newError("", fmt.Sprintf("failed to save turn: %s", err)))
		} else if a.config.Pool != nil {
			a.config.Pool.Enqueue(a.turnEvent(req, turn, turnID, startedAt))
		}
	}

	a.emit(ctx, events, newEnd())
}

// persist writes the user message and every successful completion, including
// empty ones. Failed sources are excluded.
func (a *Aggregator) persist(ctx context.Context, req Request, turn *chat.Turn) (string, error) {
	turnID, err := a.config.Store.CreateTurn(ctx, req.ChatID, req.Text)
	if err != nil {
		return "", fmt.Errorf("creating turn: %w", err)
	}

	var successes []storage.SourceResponse
	for _, id := range turn.SourceIDs() {
		resp := turn.Response(id)
		if !resp.Done || resp.Failed() {
			continue
		}
		successes = append(successes, storage.SourceResponse{SourceID: id, Text: resp.Text})
	}

	if len(successes) > 0 {
		if err := a.config.Store.AppendResponses(ctx, turnID, successes); err != nil {
			return "", fmt.Errorf("appending responses: %w", err)
		}
	}

	return turnID, nil
}

func (a *Aggregator) turnEvent(req Request, turn *chat.Turn, turnID string, startedAt time.Time) *eventstream.TurnPersistedEvent {
	completedAt := time.Now().UTC()

	var (
		responses []eventstream.TurnResponse
		failed    []string
	)
	for _, id := range turn.SourceIDs() {
		resp := turn.Response(id)
		if resp.Failed() || !resp.Done {
			failed = append(failed, id)
			continue
		}
		responses = append(responses, eventstream.TurnResponse{SourceID: id, Text: resp.Text})
	}

	return &eventstream.TurnPersistedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTurnPersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     completedAt,
		ChatID:        req.ChatID,
		TurnID:        turnID,
		UserText:      req.Text,
		Responses:     responses,
		Meta: eventstream.TurnMeta{
			StartedAt:     startedAt,
			CompletedAt:   completedAt,
			DurationMs:    completedAt.Sub(startedAt).Milliseconds(),
			SourceCount:   len(req.Sources),
			FailedSources: failed,
		},
	}
}

// emit delivers an event unless the turn has been cancelled.
func (a *Aggregator) emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
