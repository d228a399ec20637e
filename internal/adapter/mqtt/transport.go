package mqtt

import (
	"context"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/hub"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
)

const streamBuffer = 64

// Transport implements hub.Transport over MQTT topics. Alerts are published
// without the retained flag so late subscribers see nothing.
type Transport struct {
	client  *Client
	prefix  string
	metrics *observability.Metrics
}

// NewTransport relays alerts on topics under prefix.
func NewTransport(client *Client, prefix string, metrics *observability.Metrics) *Transport {
	return &Transport{client: client, prefix: prefix, metrics: metrics}
}

func (t *Transport) Publish(_ context.Context, topic domain.Topic, payload []byte) error {
	return t.client.Publish(t.topicName(topic), payload)
}

// Subscribe returns a stream that fails once the broker connection drops.
func (t *Transport) Subscribe(_ context.Context, topic domain.Topic) (hub.Stream, error) {
	name := t.topicName(topic)
	dropped := t.metrics.AlertsDropped.WithLabelValues(string(topic))
	s := newStream(t.client.connectionLost(), dropped, func() { t.client.unsubscribe(name) })
	if err := t.client.subscribe(name, s.handle); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *Transport) Close() error {
	return t.client.Close()
}

func (t *Transport) topicName(topic domain.Topic) string {
	return t.prefix + string(topic)
}

type stream struct {
	payloads chan []byte
	lost     <-chan struct{}
	closed   chan struct{}
	dropped  prometheus.Counter
	release  func()
}

func newStream(lost <-chan struct{}, dropped prometheus.Counter, release func()) *stream {
	return &stream{
		payloads: make(chan []byte, streamBuffer),
		lost:     lost,
		closed:   make(chan struct{}),
		dropped:  dropped,
		release:  release,
	}
}

// handle runs on paho's shared router and must never block it.
func (s *stream) handle(_ mqtt.Client, msg mqtt.Message) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.payloads <- msg.Payload():
	default:
		s.dropped.Inc()
	}
}

func (s *stream) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-s.payloads:
		return data, nil
	case <-s.lost:
		return nil, domain.ErrChannelDisconnected
	case <-s.closed:
		return nil, domain.ErrChannelDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *stream) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	s.release()
	return nil
}
