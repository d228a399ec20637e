// Package eventloop serializes work for a single viewer session onto one
// goroutine so session state needs no locking.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned when work is posted to a loop that has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop runs posted functions one at a time, in post order, on the goroutine
// that calls Run.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop with a queue of the given depth.
func New(depth int) *Loop {
	if depth < 1 {
		depth = 64
	}
	return &Loop{
		queue: make(chan func(), depth),
		done:  make(chan struct{}),
	}
}

// Run executes posted functions until ctx is cancelled. Functions still queued
// when Run returns are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post queues fn. It blocks while the queue is full and returns false once the
// loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
