package kafka

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/waveguard-alert-service/internal/config"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/hub"
	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	msg := newMessage("waveguard.", domain.TopicLocalsAlert, []byte(`{"message":"DANGER"}`), now)

	assert.Equal(t, "waveguard.locals_alert", msg.Topic)
	assert.Equal(t, []byte("locals_alert"), msg.Key)
	assert.JSONEq(t, `{"message":"DANGER"}`, string(msg.Value))
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "alert_topic", msg.Headers[0].Key)
	assert.Equal(t, []byte("locals_alert"), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "locals_alert", topicName("", domain.TopicLocalsAlert))
	assert.Equal(t, "prod.authority_alert", topicName("prod.", domain.TopicAuthorityAlert))
}

func TestNewTransport_ImplementsHubTransport(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopicPrefix: "waveguard."}
	var tr hub.Transport = NewTransport(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, tr.Close())
}
