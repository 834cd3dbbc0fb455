// Package kafka provides a Kafka-backed eventstream publisher using
// segmentio/kafka-go. Events are keyed by chat ID so a chat's turns land on
// the same partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/choruslabs/chorus/pkg/eventstream"
)

const defaultTopic = "chorus.turns"

// Config is the configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic is the topic turn events are written to (defaults to "chorus.turns").
	Topic string

	// BatchTimeout bounds how long the writer buffers before flushing.
	BatchTimeout time.Duration
}

// Publisher publishes turn events to a Kafka topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(config Config) (*Publisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		config.Topic = defaultTopic
	}
	if config.BatchTimeout == 0 {
		config.BatchTimeout = 100 * time.Millisecond
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Topic:        config.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: config.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}, nil
}

// PublishTurn writes one turn event, keyed by chat ID.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding turn event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ChatID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing turn event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
