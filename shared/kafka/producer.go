package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers  []string
	ClientID string
}

// NewSyncProducer creates a producer that waits for all in-sync replicas.
// Messages with the same key land on the same partition, which keeps a
// session's events in order.
func NewSyncProducer(config ProducerConfig) (sarama.SyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	if config.ClientID != "" {
		saramaConfig.ClientID = config.ClientID
	}
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}
