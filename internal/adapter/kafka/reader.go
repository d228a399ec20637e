package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/config"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/hub"
	kafkago "github.com/segmentio/kafka-go"
)

// Subscriber opens tail readers on alert topics. Readers have no consumer
// group and start at the end of the log, so every instance sees every new
// alert and none are replayed. Alert topics have a single partition.
type Subscriber struct {
	brokers []string
	prefix  string
	logger  *slog.Logger
}

// NewSubscriber creates a Subscriber for the configured brokers.
func NewSubscriber(cfg *config.Config, logger *slog.Logger) *Subscriber {
	return &Subscriber{brokers: cfg.KafkaBrokers, prefix: cfg.KafkaTopicPrefix, logger: logger}
}

// Subscribe starts reading topic from its current end.
func (s *Subscriber) Subscribe(_ context.Context, topic domain.Topic) (hub.Stream, error) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   s.brokers,
		Topic:     topicName(s.prefix, topic),
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
		MaxWait:   250 * time.Millisecond,
	})
	if err := r.SetOffset(kafkago.LastOffset); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("kafka seek %s: %w", topic, err)
	}
	s.logger.Debug("kafka reader started", "topic", topicName(s.prefix, topic))
	return &stream{reader: r}, nil
}

type stream struct {
	reader *kafkago.Reader
}

// Receive returns the next payload. Offsets are not committed.
func (s *stream) Receive(ctx context.Context) ([]byte, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("kafka read: %w", err)
	}
	return msg.Value, nil
}

func (s *stream) Close() error {
	return s.reader.Close()
}
