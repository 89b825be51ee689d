package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/sendbulk-reconciler/internal/config"
)

// EventProducer publishes JSON encoded values to a single topic.
type EventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewEventProducer ensures topic exists and returns a synchronous producer for
// it. Outcome events and reconcile requests are both low volume, so every
// write waits for the leader's acknowledgement.
func NewEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) (*EventProducer, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}
	logger = logger.With("component", "event_producer", "topic", topic)

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for event producer: %w", err)
	}
	defer conn.Close()

	if err := ensureTopic(ctx, conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, topicReadBackoff, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure topic %s exists for event producer: %w", topic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
	}

	return &EventProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}, nil
}

// Publish marshals value to JSON and writes it under key. Keys are batch ids,
// so all events of one batch land on the same partition.
func (p *EventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal event for topic %s: %w", p.topic, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", "key", key, "error", err)
		return fmt.Errorf("failed to publish event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published event", "key", key)
	return nil
}

func (p *EventProducer) Close() error {
	p.logger.Info("Closing Kafka event producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
