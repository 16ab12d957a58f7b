// Package kafka publishes region sync notifications to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/config"
	"github.com/couchcryptid/region-sentinel/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces RegionSynced messages. It implements domain.SyncNotifier.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured notification topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// NotifySynced publishes the event keyed by region so that every update of
// a region lands on the same partition in order.
func (p *Publisher) NotifySynced(ctx context.Context, event domain.RegionSynced) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish region synced: %w", err)
	}
	p.logger.Debug("region sync published", "region_id", event.RegionID, "version", event.Version)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(event domain.RegionSynced) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize region synced: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.RegionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region_id", Value: []byte(event.RegionID)},
			{Key: "version", Value: []byte(strconv.FormatInt(event.Version, 10))},
			{Key: "synced_at", Value: []byte(event.SyncedAt.Format(time.RFC3339))},
		},
	}, nil
}
