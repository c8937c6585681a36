package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-agnostic view of a consumed Kafka record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes consumed messages. Returning an error stops the consumer
// without committing the failed message.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls a topic as part of a consumer group and dispatches to a
// handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// NewConsumer joins the given consumer group on the topic.
func NewConsumer(brokers []string, group, topic string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is cancelled. Offsets are committed only after
// the handler succeeds, so failed messages are redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var failed error
		fetches.EachRecord(func(record *kgo.Record) {
			if failed != nil {
				return
			}
			msg := &Message{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    record.Offset,
				Key:       record.Key,
				Value:     record.Value,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				failed = err
			}
		})
		if failed != nil {
			return failed
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error("kafka commit failed", "error", err)
		}
	}
}
