package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "http://127.0.0.1:5000", cfg.PredictURL)
	assert.Equal(t, 5*time.Second, cfg.PredictTimeout)
	assert.Equal(t, 1, cfg.PredictRetries)
	assert.Equal(t, 256, cfg.PredictCacheSize)

	assert.Equal(t, 500*time.Millisecond, cfg.DebounceInterval)
	assert.Equal(t, 4*time.Second, cfg.SampleInterval)
	assert.Equal(t, 15, cfg.HistorySize)
	assert.Equal(t, 5*time.Second, cfg.PublishTimeout)
	assert.Contains(t, cfg.DangerAlertMessage, "Kallakkadal")

	assert.Equal(t, BackendMemory, cfg.BroadcastBackend)
	assert.Equal(t, 16, cfg.HubBufferSize)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "waveguard.", cfg.KafkaTopicPrefix)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.True(t, strings.HasPrefix(cfg.MQTTClientID, "waveguard-"))
	assert.Equal(t, "sensor/wave", cfg.MQTTSampleTopic)
	assert.Equal(t, "sensor/data", cfg.MQTTTelemetryTopic)
	assert.Equal(t, SourceSimulated, cfg.SampleSource)
	assert.False(t, cfg.TelemetryEnabled)
	assert.False(t, cfg.UsesMQTT())
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PREDICT_URL", "http://model:5000/")
	t.Setenv("PREDICT_TIMEOUT", "2s")
	t.Setenv("PREDICT_RETRIES", "0")
	t.Setenv("PREDICT_CACHE_SIZE", "0")
	t.Setenv("DEBOUNCE_INTERVAL", "250ms")
	t.Setenv("SAMPLE_INTERVAL", "1s")
	t.Setenv("HISTORY_SIZE", "30")
	t.Setenv("BROADCAST_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SAMPLE_SOURCE", "mqtt")
	t.Setenv("MQTT_CLIENT_ID", "edge-1")
	t.Setenv("TELEMETRY_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://model:5000", cfg.PredictURL)
	assert.Equal(t, 2*time.Second, cfg.PredictTimeout)
	assert.Equal(t, 0, cfg.PredictRetries)
	assert.Equal(t, 0, cfg.PredictCacheSize)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceInterval)
	assert.Equal(t, time.Second, cfg.SampleInterval)
	assert.Equal(t, 30, cfg.HistorySize)
	assert.Equal(t, BackendRedis, cfg.BroadcastBackend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, SourceMQTT, cfg.SampleSource)
	assert.Equal(t, "edge-1", cfg.MQTTClientID)
	assert.True(t, cfg.TelemetryEnabled)
	assert.True(t, cfg.UsesMQTT())
	assert.Equal(t, "otel:4317", cfg.OTLPEndpoint)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"PREDICT_TIMEOUT", "DEBOUNCE_INTERVAL", "SAMPLE_INTERVAL", "PUBLISH_TIMEOUT"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "bad")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_NonPositiveDebounce(t *testing.T) {
	t.Setenv("DEBOUNCE_INTERVAL", "0s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEBOUNCE_INTERVAL")
}

func TestLoad_HistorySizeOutOfRange(t *testing.T) {
	t.Setenv("HISTORY_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HISTORY_SIZE")
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("BROADCAST_BACKEND", "carrier-pigeon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROADCAST_BACKEND")
}

func TestLoad_InvalidSampleSource(t *testing.T) {
	t.Setenv("SAMPLE_SOURCE", "firebase")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAMPLE_SOURCE")
}

func TestLoad_MQTTBackendImpliesBroker(t *testing.T) {
	t.Setenv("BROADCAST_BACKEND", "mqtt")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UsesMQTT())
}
