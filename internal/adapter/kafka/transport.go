// Package kafka relays alerts between service instances through Kafka.
package kafka

import (
	"log/slog"

	"github.com/couchcryptid/waveguard-alert-service/internal/config"
)

// Transport implements hub.Transport with a shared producer and per-topic
// tail readers.
type Transport struct {
	*Writer
	*Subscriber
}

// NewTransport creates the producer and subscriber for the configured brokers.
func NewTransport(cfg *config.Config, logger *slog.Logger) *Transport {
	return &Transport{
		Writer:     NewWriter(cfg, logger),
		Subscriber: NewSubscriber(cfg, logger),
	}
}

func (t *Transport) Close() error {
	return t.Writer.Close()
}
