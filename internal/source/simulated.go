// Package source provides risk sample sources for local viewers.
package source

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Bounds of the simulated wave period in seconds.
const (
	MinPeriod = 5.0
	MaxPeriod = 22.0
)

// DefaultInterval is the simulated sampling cadence.
const DefaultInterval = 4 * time.Second

// Simulated draws a uniformly random wave period on a fixed interval. Each
// subscriber gets its own ticker.
type Simulated struct {
	clock    clockwork.Clock
	interval time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Simulated source.
type Option func(*Simulated)

// WithRand replaces the random generator, mainly for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulated) { s.rng = r }
}

// NewSimulated creates a sampler ticking every interval on clock.
func NewSimulated(clock clockwork.Clock, interval time.Duration, opts ...Option) *Simulated {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Simulated{
		clock:    clock,
		interval: interval,
		rng:      rand.New(rand.NewPCG(uint64(clock.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts a ticker and delivers one sample per tick until cancel is
// called. The ticker is armed before Subscribe returns.
func (s *Simulated) Subscribe(handler func(domain.RiskSample)) func() {
	ticker := s.clock.NewTicker(s.interval)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.Chan():
				select {
				case <-stop:
					return
				default:
				}
				handler(domain.RiskSample{PeriodSeconds: s.next(), ObservedAt: t})
			}
		}
	}()

	return func() { once.Do(func() { close(stop) }) }
}

func (s *Simulated) next() float64 {
	s.mu.Lock()
	v := MinPeriod + s.rng.Float64()*(MaxPeriod-MinPeriod)
	s.mu.Unlock()
	return math.Round(v*100) / 100
}
