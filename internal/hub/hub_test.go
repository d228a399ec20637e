package hub_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/hub"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects delivered alert texts.
type recorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recorder) handle(msg domain.AlertMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, msg.Text)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func (r *recorder) count() int {
	return len(r.got())
}

func alert(text string) domain.AlertMessage {
	return domain.AlertMessage{Text: text, IssuedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func newHub(t *testing.T, opts ...hub.Option) (*hub.Hub, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	h := hub.New(discardLogger(), m, opts...)
	t.Cleanup(func() { _ = h.Close() })
	return h, m
}

func TestHub_PreservesPublishOrder(t *testing.T) {
	h, _ := newHub(t)
	rec := &recorder{}
	h.Subscribe(domain.TopicLocalsAlert, rec.handle)

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("M1")))
	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("M2")))

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	if diff := cmp.Diff([]string{"M1", "M2"}, rec.got()); diff != "" {
		t.Errorf("delivery order mismatch (-want +got):\n%s", diff)
	}
}

func TestHub_LateSubscriberSeesNothing(t *testing.T) {
	h, _ := newHub(t)

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("M1")))
	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("M2")))

	rec := &recorder{}
	h.Subscribe(domain.TopicLocalsAlert, rec.handle)

	assert.Never(t, func() bool { return rec.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestHub_RoutesAuthorityAlertToLocals(t *testing.T) {
	h, m := newHub(t)
	locals := &recorder{}
	authority := &recorder{}
	h.Subscribe(domain.TopicLocalsAlert, locals.handle)
	h.Subscribe(domain.TopicAuthorityAlert, authority.handle)

	require.NoError(t, h.Publish(context.Background(), domain.TopicAuthorityAlert, alert("DANGER")))

	require.Eventually(t, func() bool { return locals.count() == 1 && authority.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"DANGER"}, locals.got())
	assert.InDelta(t, 1, testutil.ToFloat64(m.AlertsPublished.WithLabelValues("locals_alert")), 0)
}

func TestHub_DoesNotDeduplicate(t *testing.T) {
	h, _ := newHub(t)
	rec := &recorder{}
	h.Subscribe(domain.TopicLocalsAlert, rec.handle)

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("same")))
	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("same")))

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestHub_FansOutToEverySubscriber(t *testing.T) {
	h, _ := newHub(t)
	recs := make([]*recorder, 5)
	for i := range recs {
		recs[i] = &recorder{}
		h.Subscribe(domain.TopicLocalsAlert, recs[i].handle)
	}
	assert.Equal(t, 5, h.SubscriberCount(domain.TopicLocalsAlert))

	require.NoError(t, h.Publish(context.Background(), domain.TopicLocalsAlert, alert("A")))

	for _, r := range recs {
		require.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h, _ := newHub(t)
	rec := &recorder{}
	sub := h.Subscribe(domain.TopicLocalsAlert, rec.handle)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, h.SubscriberCount(domain.TopicLocalsAlert))

	require.NoError(t, h.Publish(context.Background(), domain.TopicLocalsAlert, alert("A")))
	assert.Never(t, func() bool { return rec.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	h, m := newHub(t, hub.WithBufferSize(1))

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	h.Subscribe(domain.TopicLocalsAlert, func(domain.AlertMessage) {
		entered <- struct{}{}
		<-release
	})

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("M1")))
	<-entered

	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("M2")))
	require.NoError(t, h.Publish(ctx, domain.TopicLocalsAlert, alert("M3")))

	assert.InDelta(t, 1, testutil.ToFloat64(m.AlertsDropped.WithLabelValues("locals_alert")), 0)
	close(release)
}

func TestHub_RejectsEmptyMessage(t *testing.T) {
	h, _ := newHub(t)
	err := h.Publish(context.Background(), domain.TopicLocalsAlert, alert("  "))
	assert.ErrorIs(t, err, domain.ErrEmptyAlert)
}

func TestHub_PublishAfterClose(t *testing.T) {
	h, _ := newHub(t)
	require.NoError(t, h.Close())

	err := h.Publish(context.Background(), domain.TopicLocalsAlert, alert("A"))
	assert.ErrorIs(t, err, hub.ErrHubClosed)
}

func TestHub_InProcessAlwaysReady(t *testing.T) {
	h, _ := newHub(t)
	assert.NoError(t, h.CheckReadiness(context.Background()))
}

// --- broker relay ---

var errConnectionLost = errors.New("connection lost")

type fakeStream struct {
	ch   chan []byte
	dead chan struct{}
	once sync.Once
}

func (s *fakeStream) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-s.ch:
		return data, nil
	case <-s.dead:
		return nil, errConnectionLost
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.dead) })
	return nil
}

// fakeTransport behaves like a broker: every live stream on a topic receives
// each published payload.
type fakeTransport struct {
	mu         sync.Mutex
	streams    map[domain.Topic][]*fakeStream
	failNext   int
	subscribes int
	published  map[domain.Topic]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		streams:   make(map[domain.Topic][]*fakeStream),
		published: make(map[domain.Topic]int),
	}
}

func (f *fakeTransport) Publish(_ context.Context, topic domain.Topic, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic]++
	for _, s := range f.streams[topic] {
		s.ch <- payload
	}
	return nil
}

func (f *fakeTransport) Subscribe(_ context.Context, topic domain.Topic) (hub.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.failNext > 0 {
		f.failNext--
		return nil, errConnectionLost
	}
	s := &fakeStream{ch: make(chan []byte, 16), dead: make(chan struct{})}
	f.streams[topic] = append(f.streams[topic], s)
	return s, nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) drop(topic domain.Topic) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.streams[topic] {
		_ = s.Close()
	}
	f.streams[topic] = nil
}

func (f *fakeTransport) failSubscribes(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
}

func (f *fakeTransport) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

func (f *fakeTransport) publishedOn(topic domain.Topic) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[topic]
}

func startRelay(t *testing.T, h *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestHub_RelaysThroughTransport(t *testing.T) {
	tr := newFakeTransport()
	h, _ := newHub(t, hub.WithTransport(tr))

	assert.ErrorIs(t, h.CheckReadiness(context.Background()), domain.ErrChannelDisconnected)

	startRelay(t, h)
	require.Eventually(t, func() bool { return h.CheckReadiness(context.Background()) == nil }, 2*time.Second, 5*time.Millisecond)

	rec := &recorder{}
	h.Subscribe(domain.TopicLocalsAlert, rec.handle)

	require.NoError(t, h.Publish(context.Background(), domain.TopicAuthorityAlert, alert("DANGER")))

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"DANGER"}, rec.got())
	assert.Equal(t, 1, tr.publishedOn(domain.TopicLocalsAlert))
	assert.Equal(t, 0, tr.publishedOn(domain.TopicAuthorityAlert))
}

func TestHub_ReconnectsWithoutReplay(t *testing.T) {
	tr := newFakeTransport()
	h, m := newHub(t, hub.WithTransport(tr))
	startRelay(t, h)
	require.Eventually(t, func() bool { return h.CheckReadiness(context.Background()) == nil }, 2*time.Second, 5*time.Millisecond)

	rec := &recorder{}
	h.Subscribe(domain.TopicLocalsAlert, rec.handle)

	tr.failSubscribes(1)
	tr.drop(domain.TopicLocalsAlert)

	// Published while no stream is live: lost, not replayed.
	require.NoError(t, h.Publish(context.Background(), domain.TopicLocalsAlert, alert("missed")))

	require.Eventually(t, func() bool { return tr.subscribeCount() >= 3 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return h.CheckReadiness(context.Background()) == nil }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Publish(context.Background(), domain.TopicLocalsAlert, alert("after")))
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"after"}, rec.got())
	assert.InDelta(t, 1, testutil.ToFloat64(m.HubReconnects), 0)
}

func TestHub_IgnoresMalformedPayload(t *testing.T) {
	tr := newFakeTransport()
	h, _ := newHub(t, hub.WithTransport(tr))
	startRelay(t, h)
	require.Eventually(t, func() bool { return h.CheckReadiness(context.Background()) == nil }, 2*time.Second, 5*time.Millisecond)

	rec := &recorder{}
	h.Subscribe(domain.TopicLocalsAlert, rec.handle)

	require.NoError(t, tr.Publish(context.Background(), domain.TopicLocalsAlert, []byte("not json")))
	require.NoError(t, h.Publish(context.Background(), domain.TopicLocalsAlert, alert("ok")))

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"ok"}, rec.got())
}
