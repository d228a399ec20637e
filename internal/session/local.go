package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/eventloop"
	"github.com/couchcryptid/waveguard-alert-service/internal/hub"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
)

// AlertFeed delivers broadcast alerts.
type AlertFeed interface {
	Subscribe(topic domain.Topic, handler func(domain.AlertMessage)) *hub.Subscription
}

// LocalSession drives a LocalMachine from a sample source and the locals
// alert topic. All state changes happen on the session's own loop.
type LocalSession struct {
	id      string
	logger  *slog.Logger
	metrics *observability.Metrics
	loop    *eventloop.Loop
	cancel  context.CancelFunc

	machine  *LocalMachine
	source   domain.RiskSampleSource
	alerts   AlertFeed
	alertSub *hub.Subscription

	stopSampler func()
	samplerGen  uint64

	updates   chan LocalStatus
	closeOnce sync.Once
}

func newLocalSession(ctx context.Context, id string, historySize int, source domain.RiskSampleSource, alerts AlertFeed, logger *slog.Logger, metrics *observability.Metrics) *LocalSession {
	ctx, cancel := context.WithCancel(ctx)
	s := &LocalSession{
		id:      id,
		logger:  logger.With("session_id", id, "role", domain.RoleLocal),
		metrics: metrics,
		loop:    eventloop.New(64),
		cancel:  cancel,
		machine: NewLocalMachine(historySize),
		source:  source,
		alerts:  alerts,
		updates: make(chan LocalStatus, 1),
	}
	go s.loop.Run(ctx)

	_ = s.loop.Do(ctx, func() {
		s.startSampler()
		s.alertSub = s.alerts.Subscribe(domain.TopicLocalsAlert, func(msg domain.AlertMessage) {
			s.loop.Post(func() { s.onAlert(msg) })
		})
		s.emit()
	})
	return s
}

// ID returns the session identifier.
func (s *LocalSession) ID() string { return s.id }

// Updates yields the latest status after every change. Intermediate
// snapshots are skipped when the reader falls behind.
func (s *LocalSession) Updates() <-chan LocalStatus { return s.updates }

// Status returns the current snapshot.
func (s *LocalSession) Status(ctx context.Context) (LocalStatus, error) {
	var st LocalStatus
	err := s.loop.Do(ctx, func() { st = s.machine.Status() })
	return st, err
}

// Reset leaves the override and resumes sampling.
func (s *LocalSession) Reset(ctx context.Context) error {
	return s.loop.Do(ctx, func() {
		if !s.machine.Reset() {
			return
		}
		s.logger.Info("override reset, sampling resumed")
		s.startSampler()
		s.emit()
	})
}

// Close cancels the sampler and the alert subscription and stops the loop.
func (s *LocalSession) Close() {
	s.closeOnce.Do(func() {
		_ = s.loop.Do(context.Background(), func() {
			s.stopSampling()
			if s.alertSub != nil {
				s.alertSub.Unsubscribe()
			}
		})
		s.cancel()
		<-s.loop.Done()
	})
}

func (s *LocalSession) startSampler() {
	s.samplerGen++
	gen := s.samplerGen
	s.stopSampler = s.source.Subscribe(func(rs domain.RiskSample) {
		s.loop.Post(func() {
			if gen != s.samplerGen {
				return
			}
			s.onSample(rs)
		})
	})
}

func (s *LocalSession) stopSampling() {
	s.samplerGen++
	if s.stopSampler != nil {
		s.stopSampler()
		s.stopSampler = nil
	}
}

func (s *LocalSession) onSample(rs domain.RiskSample) {
	if !s.machine.ApplySample(rs) {
		return
	}
	s.metrics.Samples.Inc()
	s.emit()
}

func (s *LocalSession) onAlert(msg domain.AlertMessage) {
	if s.machine.ApplyAlert(msg) {
		s.stopSampling()
		s.metrics.Overrides.Inc()
		s.logger.Warn("override received, sampling suspended", "message", msg.Text)
	}
	s.emit()
}

func (s *LocalSession) emit() {
	st := s.machine.Status()
	select {
	case <-s.updates:
	default:
	}
	s.updates <- st
}
