package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"github.com/tendant/cloud-gallery/pkg/gallery/events"
	"golang.org/x/sync/errgroup"
)

// KafkaConfig configures the notification topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaConsumer reads bucket notifications from a topic, as published by a
// MinIO Kafka notification target or by KafkaPublisher. Offsets are only
// committed after every record in a message is settled.
type KafkaConsumer struct {
	reader *kafka.Reader
	runner *Runner
	logger *slog.Logger
}

// NewKafkaConsumer creates a consumer group reader on cfg.Topic
func NewKafkaConsumer(cfg KafkaConfig, runner *Runner, logger *slog.Logger) *KafkaConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &KafkaConsumer{reader: reader, runner: runner, logger: logger}
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		// A message that cannot be settled blocks its partition until it can.
		b := retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
		err = retry.Do(ctx, b, func(ctx context.Context) error {
			if err := c.handle(ctx, msg); err != nil {
				c.logger.Warn("Notification not settled, retrying", "offset", msg.Offset, "partition", msg.Partition, "error", err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) error {
	created, err := events.Parse(msg.Value)
	if err != nil {
		// Poison message: nothing to redeliver.
		c.logger.Error("Skipping malformed notification", "offset", msg.Offset, "error", err)
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, ev := range created {
		g.Go(func() error {
			return c.runner.Deliver(ctx, ev.Key)
		})
	}
	return g.Wait()
}

// Close closes the underlying reader
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// KafkaPublisher writes object-created notifications to the topic. The local
// object store uses it in place of a bucket notification target.
type KafkaPublisher struct {
	writer *kafka.Writer
	bucket string
}

// NewKafkaPublisher creates a publisher for cfg.Topic
func NewKafkaPublisher(cfg KafkaConfig, bucket string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		bucket: bucket,
	}
}

// Publish sends one object-created notification keyed by object key
func (p *KafkaPublisher) Publish(ctx context.Context, key string) error {
	value, err := json.Marshal(events.NewObjectCreated(p.bucket, key, 0, time.Now()))
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
