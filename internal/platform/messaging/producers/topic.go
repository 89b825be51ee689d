package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicReadAttempts = 5
	topicReadBackoff  = 2 * time.Second
)

// ensureTopic creates topic when its partitions cannot be read after
// topicReadAttempts tries. Waiting between tries ends early with ctx's error,
// so a shutdown during startup is not held up by an unreachable broker.
func ensureTopic(ctx context.Context, admin topicAdmin, topic string, numPartitions, replicationFactor int, backoff time.Duration, logger *slog.Logger) error {
	logger.Info("Checking if Kafka topic exists", "topic", topic)

	var (
		partitions []kafka.Partition
		err        error
	)
	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			logger.Info("Kafka topic already exists", "topic", topic, "partitions", len(partitions))
			return nil
		}
		if err == nil || attempt == topicReadAttempts {
			break
		}

		logger.Warn("Failed to read partitions, retrying", "topic", topic, "attempt", attempt, "error", err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("stopped waiting for kafka topic %s: %w", topic, ctx.Err())
		case <-timer.C:
		}
	}

	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	logger.Info("Creating Kafka topic", "topic", topic, "partitions", numPartitions, "replication_factor", replicationFactor, "last_read_error", err)
	if err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}

	logger.Info("Created Kafka topic", "topic", topic)
	return nil
}
