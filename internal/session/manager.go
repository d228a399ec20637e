package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Settings are the per-session tunables.
type Settings struct {
	DebounceInterval time.Duration
	PublishTimeout   time.Duration
	HistorySize      int
	DangerMessage    string
}

func (s Settings) withDefaults() Settings {
	if s.DebounceInterval <= 0 {
		s.DebounceInterval = 500 * time.Millisecond
	}
	if s.PublishTimeout <= 0 {
		s.PublishTimeout = 5 * time.Second
	}
	if s.HistorySize <= 0 {
		s.HistorySize = domain.DefaultHistorySize
	}
	if s.DangerMessage == "" {
		s.DangerMessage = domain.DefaultDangerMessage
	}
	return s
}

// Hub is the broadcast channel sessions publish to and subscribe on.
type Hub interface {
	AlertFeed
	Publisher
}

// Manager creates viewer sessions and tears them down on disconnect.
type Manager struct {
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	settings  Settings
	hub       Hub
	predictor domain.Predictor
	source    domain.RiskSampleSource

	mu        sync.Mutex
	local     map[string]*LocalSession
	authority map[string]*AuthoritySession
}

// NewManager wires sessions to the shared hub, prediction gateway and sample
// source.
func NewManager(clock clockwork.Clock, settings Settings, h Hub, predictor domain.Predictor, source domain.RiskSampleSource, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		settings:  settings.withDefaults(),
		hub:       h,
		predictor: predictor,
		source:    source,
		local:     make(map[string]*LocalSession),
		authority: make(map[string]*AuthoritySession),
	}
}

// OpenLocal starts a local viewer session. Its sampler is running and it is
// subscribed to alerts when OpenLocal returns.
func (m *Manager) OpenLocal(ctx context.Context) *LocalSession {
	s := newLocalSession(ctx, uuid.NewString(), m.settings.HistorySize, m.source, m.hub, m.logger, m.metrics)

	m.mu.Lock()
	m.local[s.ID()] = s
	m.mu.Unlock()

	m.metrics.SessionsActive.WithLabelValues(string(domain.RoleLocal)).Inc()
	m.logger.Info("session opened", "session_id", s.ID(), "role", domain.RoleLocal)
	return s
}

// OpenAuthority starts an authority viewer session and schedules the first
// prediction for the default measurements.
func (m *Manager) OpenAuthority(ctx context.Context) *AuthoritySession {
	s := newAuthoritySession(ctx, uuid.NewString(), authorityDeps{
		clock:          m.clock,
		predictor:      m.predictor,
		publisher:      m.hub,
		debounce:       m.settings.DebounceInterval,
		historySize:    m.settings.HistorySize,
		dangerMessage:  m.settings.DangerMessage,
		publishTimeout: m.settings.PublishTimeout,
	}, m.logger, m.metrics)

	m.mu.Lock()
	m.authority[s.ID()] = s
	m.mu.Unlock()

	m.metrics.SessionsActive.WithLabelValues(string(domain.RoleAuthority)).Inc()
	m.logger.Info("session opened", "session_id", s.ID(), "role", domain.RoleAuthority)
	return s
}

// Release closes the session with id. Unknown ids are ignored.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	ls, isLocal := m.local[id]
	as, isAuthority := m.authority[id]
	delete(m.local, id)
	delete(m.authority, id)
	m.mu.Unlock()

	switch {
	case isLocal:
		ls.Close()
		m.metrics.SessionsActive.WithLabelValues(string(domain.RoleLocal)).Dec()
		m.logger.Info("session closed", "session_id", id, "role", domain.RoleLocal)
	case isAuthority:
		as.Close()
		m.metrics.SessionsActive.WithLabelValues(string(domain.RoleAuthority)).Dec()
		m.logger.Info("session closed", "session_id", id, "role", domain.RoleAuthority)
	}
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.local) + len(m.authority)
}

// Shutdown closes every open session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.local)+len(m.authority))
	for id := range m.local {
		ids = append(ids, id)
	}
	for id := range m.authority {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Release(id)
	}
}
