package hub

import (
	"context"
	"sync"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
)

// Exponential backoff: start at 200ms, double each retry, cap at 5s.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Run subscribes to every relayed topic on the transport and delivers what it
// receives to local subscribers. Lost subscriptions are re-established with
// backoff; alerts published while disconnected are not replayed. Run blocks
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.transport == nil {
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	for topic := range h.relayed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.relay(ctx, topic)
		}()
	}
	wg.Wait()
	return nil
}

func (h *Hub) relay(ctx context.Context, topic domain.Topic) {
	h.logger.Info("alert relay started", "topic", topic)
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			h.logger.Info("alert relay stopping", "topic", topic, "reason", ctx.Err())
			return
		}

		stream, err := h.transport.Subscribe(ctx, topic)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Error("subscribe to alert channel failed", "topic", topic, "error", err)
			if !backoffOrStop(ctx, &backoff) {
				return
			}
			continue
		}

		h.setConnected(topic, true)
		backoff = initialBackoff

		err = h.pump(ctx, topic, stream)
		_ = stream.Close()
		h.setConnected(topic, false)

		if ctx.Err() != nil {
			return
		}
		h.metrics.HubReconnects.Inc()
		h.logger.Warn("alert channel disconnected, reconnecting", "topic", topic, "error", err)
		if !backoffOrStop(ctx, &backoff) {
			return
		}
	}
}

// pump delivers payloads until the stream fails.
func (h *Hub) pump(ctx context.Context, topic domain.Topic, stream Stream) error {
	for {
		data, err := stream.Receive(ctx)
		if err != nil {
			return err
		}
		msg, err := domain.DecodeAlert(data, domain.Now())
		if err != nil {
			h.logger.Warn("discarding malformed alert", "topic", topic, "error", err)
			continue
		}
		h.deliver(topic, msg)
	}
}

func (h *Hub) setConnected(topic domain.Topic, up bool) {
	h.connMu.Lock()
	defer h.connMu.Unlock()

	h.connected[topic] = up
	n := 0
	for _, ok := range h.connected {
		if ok {
			n++
		}
	}
	h.metrics.HubConnected.Set(float64(n))
}

// backoffOrStop sleeps with the current backoff and advances it. Returns false
// if the context was cancelled.
func backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sharedretry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = sharedretry.NextBackoff(*backoff, maxBackoff)
	return true
}
