// Package debounce coordinates prediction requests for a session: bursts of
// input collapse into one request, and each request carries a generation so
// only the newest response is applied.
package debounce

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Handlers are the callbacks a Coordinator drives. Call runs on its own
// goroutine; the others run on the owner's loop.
type Handlers[In, Out any] struct {
	// Call performs the request. ctx is cancelled when a newer request is
	// dispatched or the coordinator is closed.
	Call func(ctx context.Context, gen uint64, in In) Out

	// Dispatch runs when the debounce window closes and the request starts.
	Dispatch func(gen uint64, in In)

	// Apply receives the response of the latest generation.
	Apply func(gen uint64, in In, out Out)

	// Stale receives the generation of a discarded response.
	Stale func(gen uint64)
}

// Coordinator debounces inputs and discards responses of superseded
// generations. Submit and Close must be called from the owner's loop; timer
// and response callbacks re-enter that loop through post.
type Coordinator[In, Out any] struct {
	clock    clockwork.Clock
	delay    time.Duration
	post     func(func()) bool
	handlers Handlers[In, Out]

	generation uint64
	inFlight   uint64
	timer      clockwork.Timer
	cancel     context.CancelFunc
	closed     bool
}

// New creates a Coordinator that waits delay after the last Submit before
// dispatching.
func New[In, Out any](clock clockwork.Clock, delay time.Duration, post func(func()) bool, h Handlers[In, Out]) *Coordinator[In, Out] {
	return &Coordinator[In, Out]{
		clock:    clock,
		delay:    delay,
		post:     post,
		handlers: h,
	}
}

// Submit records new input and restarts the debounce window. Any pending or
// in-flight request becomes stale. It returns the new generation.
func (c *Coordinator[In, Out]) Submit(in In) uint64 {
	if c.closed {
		return 0
	}
	c.generation++
	gen := c.generation

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.clock.AfterFunc(c.delay, func() {
		c.post(func() { c.fire(gen, in) })
	})
	return gen
}

// Generation returns the latest generation handed out by Submit.
func (c *Coordinator[In, Out]) Generation() uint64 {
	return c.generation
}

// Pending reports whether a request is waiting on its timer or in flight.
func (c *Coordinator[In, Out]) Pending() bool {
	return c.timer != nil || c.inFlight != 0
}

// Close stops the timer and cancels any in-flight request. Responses that
// arrive afterwards are dropped.
func (c *Coordinator[In, Out]) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = 0
}

func (c *Coordinator[In, Out]) fire(gen uint64, in In) {
	if c.closed || gen != c.generation {
		return
	}
	c.timer = nil

	// A newer dispatch supersedes the previous request.
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.inFlight = gen

	if c.handlers.Dispatch != nil {
		c.handlers.Dispatch(gen, in)
	}

	go func() {
		out := c.handlers.Call(ctx, gen, in)
		c.post(func() { c.resolve(gen, in, out) })
	}()
}

func (c *Coordinator[In, Out]) resolve(gen uint64, in In, out Out) {
	if c.closed {
		return
	}
	if gen != c.generation {
		if c.handlers.Stale != nil {
			c.handlers.Stale(gen)
		}
		return
	}

	c.cancel()
	c.cancel = nil
	c.inFlight = 0
	c.handlers.Apply(gen, in, out)
}
