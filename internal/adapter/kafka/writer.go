package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/config"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces encoded alerts. The Kafka topic is derived per message from
// the alert topic.
type Writer struct {
	writer *kafkago.Writer
	prefix string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured brokers.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, prefix: cfg.KafkaTopicPrefix, logger: logger}
}

// Publish writes one alert payload and waits for broker acknowledgement.
func (w *Writer) Publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	msg := newMessage(w.prefix, topic, payload, domain.Now())
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", msg.Topic, err)
	}
	w.logger.Debug("alert published to kafka", "topic", msg.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// newMessage wraps an alert payload into a Kafka message.
func newMessage(prefix string, topic domain.Topic, payload []byte, now time.Time) kafkago.Message {
	return kafkago.Message{
		Topic: topicName(prefix, topic),
		Key:   []byte(topic),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "alert_topic", Value: []byte(topic)},
			{Key: "published_at", Value: []byte(now.UTC().Format(time.RFC3339))},
		},
	}
}

func topicName(prefix string, topic domain.Topic) string {
	return prefix + string(topic)
}
