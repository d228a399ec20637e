package mqtt

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SampleSource is a domain.RiskSampleSource fed by a wave sensor publishing
// {"period_seconds", "observed_at"} JSON. One broker subscription serves
// every session.
type SampleSource struct {
	logger *slog.Logger

	mu       sync.Mutex
	nextID   uint64
	handlers map[uint64]func(domain.RiskSample)
}

// NewSampleSource subscribes to topic on client.
func NewSampleSource(client *Client, topic string, logger *slog.Logger) (*SampleSource, error) {
	s := newSampleSource(logger)
	if err := client.subscribe(topic, s.handleMessage); err != nil {
		return nil, err
	}
	return s, nil
}

func newSampleSource(logger *slog.Logger) *SampleSource {
	return &SampleSource{logger: logger, handlers: make(map[uint64]func(domain.RiskSample))}
}

func (s *SampleSource) Subscribe(handler func(domain.RiskSample)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers[id] = handler
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *SampleSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var sample domain.RiskSample
	if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
		s.logger.Warn("discarding malformed wave sample", "topic", msg.Topic(), "error", err)
		return
	}
	if sample.ObservedAt.IsZero() {
		sample.ObservedAt = domain.Now()
	}

	s.mu.Lock()
	handlers := make([]func(domain.RiskSample), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(sample)
	}
}

// TelemetryFeed keeps the latest IMU reading from the device feed.
type TelemetryFeed struct {
	logger *slog.Logger

	mu      sync.RWMutex
	latest  domain.TelemetryReading
	present bool
}

// NewTelemetryFeed subscribes to topic on client.
func NewTelemetryFeed(client *Client, topic string, logger *slog.Logger) (*TelemetryFeed, error) {
	f := &TelemetryFeed{logger: logger}
	if err := client.subscribe(topic, f.handleMessage); err != nil {
		return nil, err
	}
	return f, nil
}

// Latest returns the most recent reading and whether one has arrived.
func (f *TelemetryFeed) Latest() (domain.TelemetryReading, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest, f.present
}

func (f *TelemetryFeed) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var r domain.TelemetryReading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		f.logger.Warn("discarding malformed telemetry", "topic", msg.Topic(), "error", err)
		return
	}
	f.mu.Lock()
	f.latest = r
	f.present = true
	f.mu.Unlock()
}
