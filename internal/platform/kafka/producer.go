// Package kafka wraps the franz-go client for publishing and consuming
// workflow events.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"ecocert/internal/platform/config"
)

// Producer publishes records to Kafka.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects a producer for the configured workflow topic.
// Returns nil if no brokers are configured (Kafka not enabled).
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, topic: cfg.Topic}, nil
}

// Produce publishes one record synchronously. Key is used for partitioning
// so events for the same aggregate stay ordered.
func (p *Producer) Produce(ctx context.Context, key, value []byte) error {
	record := &kgo.Record{Topic: p.topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
