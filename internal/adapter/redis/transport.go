// Package redis relays alerts between service instances over Redis Pub/Sub.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/config"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/hub"
	"github.com/go-redis/redis/v8"
)

// channelPrefix namespaces alert channels on a shared Redis.
const channelPrefix = "waveguard:"

// healthInterval is how often an idle stream pings the server. go-redis
// reconnects pub/sub connections silently, so the ping is what surfaces an
// outage to the relay.
const healthInterval = time.Second

// Transport implements hub.Transport with Redis Pub/Sub. Pub/Sub keeps no
// history, so a reconnecting subscriber never sees old alerts.
type Transport struct {
	client *redis.Client
	logger *slog.Logger
}

// NewTransport creates a Redis client for the configured server.
func NewTransport(cfg *config.Config, logger *slog.Logger) *Transport {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &Transport{client: client, logger: logger}
}

// Ping checks the connection.
func (t *Transport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

func (t *Transport) Publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	n, err := t.client.Publish(ctx, channelName(topic), payload).Result()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	t.logger.Debug("alert published to redis", "topic", topic, "receivers", n)
	return nil
}

// Subscribe blocks until Redis confirms the subscription.
func (t *Transport) Subscribe(ctx context.Context, topic domain.Topic) (hub.Stream, error) {
	ps := t.client.Subscribe(ctx, channelName(topic))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}
	return &stream{
		ps:       ps,
		messages: ps.Channel(),
		health:   time.NewTicker(healthInterval),
	}, nil
}

func (t *Transport) Close() error {
	return t.client.Close()
}

func channelName(topic domain.Topic) string {
	return channelPrefix + string(topic)
}

type stream struct {
	ps       *redis.PubSub
	messages <-chan *redis.Message
	health   *time.Ticker
}

func (s *stream) Receive(ctx context.Context) ([]byte, error) {
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return nil, domain.ErrChannelDisconnected
			}
			return []byte(msg.Payload), nil
		case <-s.health.C:
			if err := s.ping(ctx); err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrChannelDisconnected, err)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *stream) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthInterval)
	defer cancel()
	return s.ps.Ping(ctx)
}

func (s *stream) Close() error {
	s.health.Stop()
	return s.ps.Close()
}
