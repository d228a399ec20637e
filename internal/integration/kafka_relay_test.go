//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/adapter/kafka"
	"github.com/couchcryptid/waveguard-alert-service/internal/config"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/hub"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopicPrefix = "it."

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("waveguard-it"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestKafkaTransport verifies that two hubs on one broker, standing in for two
// service instances, relay an authority alert to the other's local viewers.
func TestKafkaTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopicPrefix+string(domain.TopicLocalsAlert))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopicPrefix: testTopicPrefix}
	metrics := observability.NewMetricsForTesting()

	publisher := hub.New(testLogger(), metrics, hub.WithTransport(kafka.NewTransport(cfg, testLogger())))
	receiver := hub.New(testLogger(), metrics, hub.WithTransport(kafka.NewTransport(cfg, testLogger())))

	runCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, h := range []*hub.Hub{publisher, receiver} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Run(runCtx)
		}()
	}
	defer func() {
		stop()
		wg.Wait()
		_ = publisher.Close()
		_ = receiver.Close()
	}()

	for _, h := range []*hub.Hub{publisher, receiver} {
		require.Eventually(t, func() bool { return h.CheckReadiness(ctx) == nil }, 30*time.Second, 100*time.Millisecond)
	}

	got := make(chan string, 4)
	receiver.Subscribe(domain.TopicLocalsAlert, func(msg domain.AlertMessage) { got <- msg.Text })

	// The tail reader may attach just after the first write; keep publishing
	// until one arrives.
	deadline := time.After(30 * time.Second)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		require.NoError(t, publisher.Publish(ctx, domain.TopicAuthorityAlert, domain.NewAlertMessage("DANGER")))
		select {
		case text := <-got:
			assert.Equal(t, "DANGER", text)
			return
		case <-ticker.C:
		case <-deadline:
			t.Fatal("alert not relayed through kafka")
		}
	}
}
