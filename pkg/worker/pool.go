// Package worker provides an asynchronous worker pool for publishing turn
// events via the provided eventstream.Publisher.
//
// The pool decouples event emission from the fan-out request path so a slow
// or unavailable event stream backend never delays the streaming response.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/choruslabs/chorus/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher is the event stream backend turn events are published to.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool publishes turn events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan *eventstream.TurnPersistedEvent
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("a publisher is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *eventstream.TurnPersistedEvent, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := uint(0); i < c.NumWorkers; i++ {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a turn event for publishing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the event being dropped
func (p *Pool) Enqueue(event *eventstream.TurnPersistedEvent) bool {
	if event == nil {
		return false
	}

	select {
	case p.queue <- event:
		p.logger.Debug("turn event queued",
			zap.String("chat_id", event.ChatID),
			zap.String("turn_id", event.TurnID),
		)
		return true
	default:
		p.logger.Error("turn event not queued, queue full, event dropped",
			zap.String("chat_id", event.ChatID),
			zap.String("turn_id", event.TurnID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight events to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls events off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("publish worker stopped", zap.Uint("worker_id", id))
}

func (p *Pool) publish(event *eventstream.TurnPersistedEvent) {
	if err := p.config.Publisher.PublishTurn(context.Background(), event); err != nil {
		p.logger.Error("async turn publish failed",
			zap.String("chat_id", event.ChatID),
			zap.String("turn_id", event.TurnID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("turn event published",
		zap.String("chat_id", event.ChatID),
		zap.String("turn_id", event.TurnID),
	)
}
