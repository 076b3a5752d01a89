package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	partitionReadRetries = 5
	partitionReadBackoff = 2 * time.Second
)

// createKafkaTopicIfNotExists ensures the topic is present before any
// producer writes to it. Brokers that are still electing a leader can fail
// partition reads transiently, so the existence check retries before
// concluding the topic is missing.
func createKafkaTopicIfNotExists(conn *kafka.Conn, topicName string, numPartitions int, replicationFactor int, log *slog.Logger) error {
	var partitions []kafka.Partition
	var readErr error

	for attempt := 1; attempt <= partitionReadRetries; attempt++ {
		partitions, readErr = conn.ReadPartitions(topicName)
		if readErr == nil {
			break
		}
		log.Warn("Failed to read partitions, retrying",
			"topic", topicName, "attempt", attempt, "error", readErr,
		)
		time.Sleep(partitionReadBackoff)
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", topicName, "partitions", len(partitions))
		return nil
	}

	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	log.Info("Kafka topic not found, creating it",
		"topic", topicName, "partitions", numPartitions, "replication_factor", replicationFactor,
	)
	if err := conn.CreateTopics(kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topicName, err)
	}

	log.Info("Successfully created Kafka topic", "topic", topicName)
	return nil
}
