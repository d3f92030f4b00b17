// Package kafka publishes run summaries for the flood dashboard.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/floodsight/sar-flood-mapping/internal/config"
	"github.com/floodsight/sar-flood-mapping/internal/pipeline"
)

// Publisher writes one summary message per completed run. Keyed by the flood
// scene name so reprocessed scenes land in the same partition.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Publisher for the configured brokers and topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaSummaryTopic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

// PublishSummary serializes and sends one run summary.
func (p *Publisher) PublishSummary(ctx context.Context, s pipeline.Summary) error {
	msg, err := serializeSummary(s)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing run summary for %s: %w", s.FloodScene, err)
	}
	p.logger.Info("published run summary",
		"topic", p.writer.Topic,
		"run_id", s.RunID,
		"flood_scene", s.FloodScene,
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeSummary(s pipeline.Summary) (kafkago.Message, error) {
	value, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serializing run summary for %s: %w", s.FloodScene, err)
	}
	return kafkago.Message{
		Key:   []byte(s.FloodScene),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(s.RunID)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}, nil
}
