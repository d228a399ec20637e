// Package session holds the per-viewer status state machines and the event
// loops that drive them. Each session is owned by one connected viewer.
package session

import (
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
)

// OverridePeriod is the representative wave period recorded when an override
// arrives.
const OverridePeriod = 18.5

// LocalState is the state of a local viewer.
type LocalState int

const (
	// StateSampling classifies each incoming sample.
	StateSampling LocalState = iota
	// StateOverridden holds Danger until an explicit reset.
	StateOverridden
)

func (s LocalState) String() string {
	if s == StateOverridden {
		return "overridden"
	}
	return "sampling"
}

// LocalStatus is the snapshot rendered by a local viewer.
type LocalStatus struct {
	Tier          domain.Tier `json:"tier"`
	PeriodSeconds float64     `json:"period_seconds"`
	LastMessage   string      `json:"last_message,omitempty"`
	Overridden    bool        `json:"overridden"`
	History       []float64   `json:"history"`
}

// LocalMachine merges local samples and received overrides into one status.
// It is not safe for concurrent use; a LocalSession serializes access.
type LocalMachine struct {
	state       LocalState
	tier        domain.Tier
	period      float64
	lastMessage string
	history     *domain.HistoryBuffer
}

// NewLocalMachine starts in Sampling with a Safe tier.
func NewLocalMachine(historySize int) *LocalMachine {
	return &LocalMachine{
		state:   StateSampling,
		tier:    domain.TierSafe,
		history: domain.NewHistoryBuffer(historySize),
	}
}

// State returns the current state.
func (m *LocalMachine) State() LocalState {
	return m.state
}

// ApplySample classifies s and records it. Samples are ignored while
// overridden; the return value reports whether s was applied.
func (m *LocalMachine) ApplySample(s domain.RiskSample) bool {
	if m.state == StateOverridden {
		return false
	}
	m.period = s.PeriodSeconds
	m.tier = s.Tier()
	m.history.Push(s.PeriodSeconds)
	return true
}

// ApplyAlert forces Danger and records the override period. It returns true
// only for the transition out of Sampling; later alerts refresh the message.
func (m *LocalMachine) ApplyAlert(msg domain.AlertMessage) bool {
	entered := m.state == StateSampling
	m.state = StateOverridden
	m.lastMessage = msg.Text
	m.tier = domain.TierDanger
	m.period = OverridePeriod
	m.history.Push(OverridePeriod)
	return entered
}

// Reset returns to Sampling and clears the message. History is kept. It
// returns false if the machine was not overridden.
func (m *LocalMachine) Reset() bool {
	if m.state != StateOverridden {
		return false
	}
	m.state = StateSampling
	m.lastMessage = ""
	m.tier = domain.Classify(m.period)
	return true
}

// Status returns a snapshot.
func (m *LocalMachine) Status() LocalStatus {
	return LocalStatus{
		Tier:          m.tier,
		PeriodSeconds: m.period,
		LastMessage:   m.lastMessage,
		Overridden:    m.state == StateOverridden,
		History:       m.history.Values(),
	}
}

// AuthorityStatus is the snapshot rendered by an authority viewer.
type AuthorityStatus struct {
	Measurements  domain.Measurements      `json:"measurements"`
	AdvisoryTier  domain.Tier              `json:"advisory_tier"`
	Prediction    *domain.PredictionResult `json:"prediction,omitempty"`
	Pending       bool                     `json:"pending"`
	InDanger      bool                     `json:"in_danger"`
	LastBroadcast string                   `json:"last_broadcast,omitempty"`
	History       []float64                `json:"history"`
}

// AuthorityMachine tracks the latest prediction and decides when a danger
// alert must be published. It is not safe for concurrent use.
type AuthorityMachine struct {
	measurements  domain.Measurements
	result        *domain.PredictionResult
	inDanger      bool
	lastBroadcast string
	history       *domain.HistoryBuffer
}

// NewAuthorityMachine starts from the default measurements.
func NewAuthorityMachine(historySize int) *AuthorityMachine {
	return &AuthorityMachine{
		measurements: domain.DefaultMeasurements(),
		history:      domain.NewHistoryBuffer(historySize),
	}
}

// Measurements returns the current form input.
func (m *AuthorityMachine) Measurements() domain.Measurements {
	return m.measurements
}

// SetMeasurements replaces the form input.
func (m *AuthorityMachine) SetMeasurements(in domain.Measurements) {
	m.measurements = in
}

// Dispatched records the peak period of a request leaving for the gateway.
func (m *AuthorityMachine) Dispatched(in domain.Measurements) {
	m.history.Push(in.PeakPeriod)
}

// ApplyPrediction stores r and reports whether it is an edge into the
// high-severity class. Error results leave the edge state untouched.
func (m *AuthorityMachine) ApplyPrediction(r domain.PredictionResult) bool {
	m.result = &r
	if r.IsError {
		return false
	}
	danger := r.HighSeverity()
	publish := danger && !m.inDanger
	m.inDanger = danger
	return publish
}

// PublishFailed clears the danger latch after the alert for an edge could not
// be sent, so the next high-severity result publishes again.
func (m *AuthorityMachine) PublishFailed() {
	m.inDanger = false
}

// RecordBroadcast remembers the last text sent to locals.
func (m *AuthorityMachine) RecordBroadcast(text string) {
	m.lastBroadcast = text
}

// Status returns a snapshot.
func (m *AuthorityMachine) Status() AuthorityStatus {
	st := AuthorityStatus{
		Measurements:  m.measurements,
		AdvisoryTier:  domain.Classify(m.measurements.PeakPeriod),
		InDanger:      m.inDanger,
		LastBroadcast: m.lastBroadcast,
		History:       m.history.Values(),
	}
	if m.result != nil {
		r := *m.result
		st.Prediction = &r
	}
	return st
}
