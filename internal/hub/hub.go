// Package hub distributes operator alerts to connected viewers. A Hub fans
// messages out in process and, when given a Transport, relays them through a
// broker so every service instance sees the same alerts.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
)

// ErrHubClosed is returned by Publish after Close.
var ErrHubClosed = errors.New("alert hub closed")

// DefaultBufferSize is the per-subscriber delivery queue depth.
const DefaultBufferSize = 16

// Transport carries encoded alerts between service instances.
type Transport interface {
	Publish(ctx context.Context, topic domain.Topic, payload []byte) error
	Subscribe(ctx context.Context, topic domain.Topic) (Stream, error)
	Close() error
}

// Stream yields payloads from one transport subscription. Receive returns an
// error when the connection is lost.
type Stream interface {
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// defaultRoutes maps a publish topic to the additional topics it is delivered on.
var defaultRoutes = map[domain.Topic][]domain.Topic{
	domain.TopicAuthorityAlert: {domain.TopicLocalsAlert},
}

// Hub is the alert broadcast channel. It is safe for concurrent use.
type Hub struct {
	logger     *slog.Logger
	metrics    *observability.Metrics
	transport  Transport
	bufferSize int
	routes     map[domain.Topic][]domain.Topic
	relayed    map[domain.Topic]bool

	mu     sync.Mutex
	subs   map[domain.Topic]map[uint64]*subscriber
	nextID uint64
	closed bool

	connMu    sync.Mutex
	connected map[domain.Topic]bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithTransport relays routed topics through t.
func WithTransport(t Transport) Option {
	return func(h *Hub) { h.transport = t }
}

// WithBufferSize sets the per-subscriber queue depth.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// New creates a Hub. Without a transport, delivery stays in process.
func New(logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Hub {
	h := &Hub{
		logger:     logger,
		metrics:    metrics,
		bufferSize: DefaultBufferSize,
		routes:     defaultRoutes,
		relayed:    make(map[domain.Topic]bool),
		subs:       make(map[domain.Topic]map[uint64]*subscriber),
		connected:  make(map[domain.Topic]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.transport != nil {
		for _, targets := range h.routes {
			for _, t := range targets {
				h.relayed[t] = true
			}
		}
	}
	return h
}

// Publish delivers msg on topic and on every topic it routes to. Delivery
// reaches only current subscribers. Messages from one publisher keep their
// order for every subscriber.
func (h *Hub) Publish(ctx context.Context, topic domain.Topic, msg domain.AlertMessage) error {
	payload, err := domain.EncodeAlert(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrHubClosed
	}

	for _, target := range h.targets(topic) {
		h.metrics.AlertsPublished.WithLabelValues(string(target)).Inc()

		if h.relayed[target] {
			if err := h.transport.Publish(ctx, target, payload); err != nil {
				return fmt.Errorf("%w: publish %s: %w", domain.ErrChannelDisconnected, target, err)
			}
			continue
		}
		h.deliver(target, msg)
	}

	h.logger.Info("alert published", "topic", topic, "message", msg.Text)
	return nil
}

// Subscribe registers handler for topic. Handlers for one subscription run
// sequentially on a dedicated goroutine.
func (h *Hub) Subscribe(topic domain.Topic, handler func(domain.AlertMessage)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &subscriber{
		topic:   topic,
		handler: handler,
		queue:   make(chan domain.AlertMessage, h.bufferSize),
		done:    make(chan struct{}),
	}
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]*subscriber)
	}
	h.subs[topic][h.nextID] = sub
	h.metrics.HubSubscribers.Inc()

	go sub.run(h.metrics)

	return &Subscription{hub: h, topic: topic, id: h.nextID}
}

// SubscriberCount returns the number of subscribers on topic.
func (h *Hub) SubscriberCount(topic domain.Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

// CheckReadiness reports whether every relayed topic has a live transport
// subscription. An in-process hub is always ready.
func (h *Hub) CheckReadiness(_ context.Context) error {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	for t := range h.relayed {
		if !h.connected[t] {
			return fmt.Errorf("%w: %s", domain.ErrChannelDisconnected, t)
		}
	}
	return nil
}

// Close unsubscribes everyone and closes the transport.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for topic, subs := range h.subs {
		for id, sub := range subs {
			close(sub.done)
			delete(subs, id)
			h.metrics.HubSubscribers.Dec()
		}
		delete(h.subs, topic)
	}
	h.mu.Unlock()

	if h.transport != nil {
		return h.transport.Close()
	}
	return nil
}

func (h *Hub) targets(topic domain.Topic) []domain.Topic {
	return append([]domain.Topic{topic}, h.routes[topic]...)
}

// deliver enqueues msg for every current subscriber of topic. Enqueueing
// under the lock keeps each subscriber's queue in publish order.
func (h *Hub) deliver(topic domain.Topic, msg domain.AlertMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[topic] {
		select {
		case sub.queue <- msg:
		default:
			h.metrics.AlertsDropped.WithLabelValues(string(topic)).Inc()
			h.logger.Warn("subscriber queue full, dropping alert", "topic", topic)
		}
	}
}

func (h *Hub) unsubscribe(topic domain.Topic, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[topic][id]
	if !ok {
		return
	}
	delete(h.subs[topic], id)
	close(sub.done)
	h.metrics.HubSubscribers.Dec()
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	hub   *Hub
	topic domain.Topic
	id    uint64
	once  sync.Once
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.hub.unsubscribe(s.topic, s.id) })
}

type subscriber struct {
	topic   domain.Topic
	handler func(domain.AlertMessage)
	queue   chan domain.AlertMessage
	done    chan struct{}
}

func (s *subscriber) run(metrics *observability.Metrics) {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(msg)
			metrics.AlertsDelivered.WithLabelValues(string(s.topic)).Inc()
		}
	}
}
