package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/debounce"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/eventloop"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Publisher sends an alert on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic domain.Topic, msg domain.AlertMessage) error
}

// AuthoritySession debounces measurement edits into prediction requests and
// publishes a danger alert on each entry into the high-risk class.
type AuthoritySession struct {
	id      string
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	loop    *eventloop.Loop
	cancel  context.CancelFunc

	machine        *AuthorityMachine
	coord          *debounce.Coordinator[domain.Measurements, domain.PredictionResult]
	predictor      domain.Predictor
	publisher      Publisher
	dangerMessage  string
	publishTimeout time.Duration

	updates   chan AuthorityStatus
	closeOnce sync.Once
}

type authorityDeps struct {
	clock          clockwork.Clock
	predictor      domain.Predictor
	publisher      Publisher
	debounce       time.Duration
	historySize    int
	dangerMessage  string
	publishTimeout time.Duration
}

func newAuthoritySession(ctx context.Context, id string, deps authorityDeps, logger *slog.Logger, metrics *observability.Metrics) *AuthoritySession {
	ctx, cancel := context.WithCancel(ctx)
	s := &AuthoritySession{
		id:             id,
		logger:         logger.With("session_id", id, "role", domain.RoleAuthority),
		metrics:        metrics,
		clock:          deps.clock,
		loop:           eventloop.New(64),
		cancel:         cancel,
		machine:        NewAuthorityMachine(deps.historySize),
		predictor:      deps.predictor,
		publisher:      deps.publisher,
		dangerMessage:  deps.dangerMessage,
		publishTimeout: deps.publishTimeout,
		updates:        make(chan AuthorityStatus, 1),
	}
	s.coord = debounce.New(deps.clock, deps.debounce, s.loop.Post, debounce.Handlers[domain.Measurements, domain.PredictionResult]{
		Call:     s.predict,
		Dispatch: s.onDispatch,
		Apply:    s.onResult,
		Stale:    s.onStale,
	})
	go s.loop.Run(ctx)

	_ = s.loop.Do(ctx, func() {
		s.coord.Submit(s.machine.Measurements())
		s.emit()
	})
	return s
}

// ID returns the session identifier.
func (s *AuthoritySession) ID() string { return s.id }

// Updates yields the latest status after every change.
func (s *AuthoritySession) Updates() <-chan AuthorityStatus { return s.updates }

// Status returns the current snapshot.
func (s *AuthoritySession) Status(ctx context.Context) (AuthorityStatus, error) {
	var st AuthorityStatus
	err := s.loop.Do(ctx, func() { st = s.status() })
	return st, err
}

// SetMeasurements replaces the form input and schedules a debounced
// prediction.
func (s *AuthoritySession) SetMeasurements(ctx context.Context, m domain.Measurements) error {
	return s.loop.Do(ctx, func() {
		s.machine.SetMeasurements(m)
		s.coord.Submit(m)
		s.emit()
	})
}

// Broadcast publishes an operator-written alert to local viewers.
func (s *AuthoritySession) Broadcast(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyAlert
	}
	var err error
	if doErr := s.loop.Do(ctx, func() { err = s.broadcast(text) }); doErr != nil {
		return doErr
	}
	return err
}

// Close cancels the debounce timer and any in-flight request.
func (s *AuthoritySession) Close() {
	s.closeOnce.Do(func() {
		_ = s.loop.Do(context.Background(), s.coord.Close)
		s.cancel()
		<-s.loop.Done()
	})
}

// predict runs off the loop.
func (s *AuthoritySession) predict(ctx context.Context, gen uint64, m domain.Measurements) domain.PredictionResult {
	ctx, span := observability.StartPredictSpan(ctx, s.id, gen)
	start := time.Now()

	result := domain.Predict(ctx, s.predictor, domain.BuildFeatures(m, s.clock.Now()), s.logger)

	s.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	observability.EndPredictSpan(span, result.Tier.String(), result.IsError, result.Error)
	return result
}

func (s *AuthoritySession) onDispatch(gen uint64, m domain.Measurements) {
	s.machine.Dispatched(m)
	s.logger.Debug("prediction requested", "generation", gen, "tp", m.PeakPeriod)
	s.emit()
}

func (s *AuthoritySession) onResult(gen uint64, _ domain.Measurements, r domain.PredictionResult) {
	outcome := "success"
	if r.IsError {
		outcome = "error"
	}
	s.metrics.Predictions.WithLabelValues(outcome).Inc()

	if s.machine.ApplyPrediction(r) {
		s.logger.Warn("high-risk prediction, alerting locals", "generation", gen, "confidence", r.Confidence)
		if err := s.broadcast(s.dangerMessage); err != nil {
			s.machine.PublishFailed()
			s.logger.Error("publish danger alert failed, retrying on next result", "error", err)
		}
	}
	s.emit()
}

func (s *AuthoritySession) onStale(gen uint64) {
	s.metrics.Predictions.WithLabelValues("stale").Inc()
	s.metrics.StaleResponses.Inc()
	s.logger.Debug("discarding stale prediction", "generation", gen, "current", s.coord.Generation())
}

func (s *AuthoritySession) broadcast(text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, domain.TopicAuthorityAlert, domain.NewAlertMessage(text)); err != nil {
		return err
	}
	s.machine.RecordBroadcast(text)
	s.emit()
	return nil
}

func (s *AuthoritySession) status() AuthorityStatus {
	st := s.machine.Status()
	st.Pending = s.coord.Pending()
	return st
}

func (s *AuthoritySession) emit() {
	st := s.status()
	select {
	case <-s.updates:
	default:
	}
	s.updates <- st
}
