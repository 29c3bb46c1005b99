// Package kafka publishes unit completion events so downstream consumers
// (ingestion into analysis stores, cache invalidation) can react to new
// regridded files without polling the output tree.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/emissions-regrid/internal/config"
	"github.com/couchcryptid/emissions-regrid/internal/pipeline"
)

// Publisher produces completion events to a Kafka topic.
// It implements pipeline.CompletionPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured completion topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaCompletionTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishCompletion serializes and publishes one completion event.
func (p *Publisher) PublishCompletion(ctx context.Context, c pipeline.Completion) error {
	msg, err := serializeToMessage(c)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Completion into a Kafka message. The key is
// the unit identity, so re-runs of the same unit land on the same partition
// and compact away.
func serializeToMessage(c pipeline.Completion) (kafkago.Message, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize completion: %w", err)
	}
	key := fmt.Sprintf("%04d-%02d/%s/%s", c.Year, c.Month, c.DayType, c.Sector)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "sector", Value: []byte(c.Sector)},
			{Key: "completed_at", Value: []byte(c.CompletedAt.Format(time.RFC3339))},
		},
	}, nil
}
