package domain

import "time"

// RiskSample is one wave period observation.
type RiskSample struct {
	PeriodSeconds float64   `json:"period_seconds"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Tier classifies the sample.
func (s RiskSample) Tier() Tier {
	return Classify(s.PeriodSeconds)
}

// RiskSampleSource delivers samples to a handler until the returned cancel
// function is called. A delivery racing with cancel may still arrive, so
// consumers gate samples on their own state.
type RiskSampleSource interface {
	Subscribe(handler func(RiskSample)) (cancel func())
}
