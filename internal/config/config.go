package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/google/uuid"
)

// Broadcast backends for the alert hub.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendKafka  = "kafka"
	BackendMQTT   = "mqtt"
)

// Sample sources for local viewers.
const (
	SourceSimulated = "simulated"
	SourceMQTT      = "mqtt"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Prediction gateway.
	PredictURL       string
	PredictTimeout   time.Duration
	PredictRetries   int
	PredictCacheSize int

	// Viewer sessions.
	DebounceInterval   time.Duration
	SampleInterval     time.Duration
	HistorySize        int
	PublishTimeout     time.Duration
	DangerAlertMessage string

	// Alert hub.
	BroadcastBackend string
	HubBufferSize    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers     []string
	KafkaTopicPrefix string

	MQTTBroker         string
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTTopicPrefix    string
	MQTTSampleTopic    string
	MQTTTelemetryTopic string

	SampleSource     string
	TelemetryEnabled bool

	AuthorityUsername string
	AuthorityPassword string

	OTLPEndpoint string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	predictTimeout, err := parseDuration("PREDICT_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	debounce, err := parseDuration("DEBOUNCE_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}
	sampleInterval, err := parseDuration("SAMPLE_INTERVAL", "4s")
	if err != nil {
		return nil, err
	}
	publishTimeout, err := parseDuration("PUBLISH_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	predictRetries, err := parseInt("PREDICT_RETRIES", 1, 0, 10)
	if err != nil {
		return nil, err
	}
	historySize, err := parseInt("HISTORY_SIZE", 15, 1, 1000)
	if err != nil {
		return nil, err
	}
	hubBuffer, err := parseInt("HUB_BUFFER_SIZE", 16, 1, 10000)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseInt("REDIS_DB", 0, 0, 15)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PredictURL:       strings.TrimRight(sharedcfg.EnvOrDefault("PREDICT_URL", "http://127.0.0.1:5000"), "/"),
		PredictTimeout:   predictTimeout,
		PredictRetries:   predictRetries,
		PredictCacheSize: parsePredictCacheSize(),

		DebounceInterval:   debounce,
		SampleInterval:     sampleInterval,
		HistorySize:        historySize,
		PublishTimeout:     publishTimeout,
		DangerAlertMessage: sharedcfg.EnvOrDefault("DANGER_ALERT_MESSAGE", "🚨 DANGER: Kallakkadal conditions detected. Please take caution."),

		BroadcastBackend: strings.ToLower(sharedcfg.EnvOrDefault("BROADCAST_BACKEND", BackendMemory)),
		HubBufferSize:    hubBuffer,

		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicPrefix: sharedcfg.EnvOrDefault("KAFKA_TOPIC_PREFIX", "waveguard."),

		MQTTBroker:         sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:       sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "waveguard-"+uuid.NewString()[:8]),
		MQTTUsername:       os.Getenv("MQTT_USERNAME"),
		MQTTPassword:       os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:    sharedcfg.EnvOrDefault("MQTT_TOPIC_PREFIX", "waveguard/"),
		MQTTSampleTopic:    sharedcfg.EnvOrDefault("MQTT_SAMPLE_TOPIC", "sensor/wave"),
		MQTTTelemetryTopic: sharedcfg.EnvOrDefault("MQTT_TELEMETRY_TOPIC", "sensor/data"),

		SampleSource:     strings.ToLower(sharedcfg.EnvOrDefault("SAMPLE_SOURCE", SourceSimulated)),
		TelemetryEnabled: os.Getenv("TELEMETRY_ENABLED") == "true",

		AuthorityUsername: sharedcfg.EnvOrDefault("AUTHORITY_USERNAME", "authority"),
		AuthorityPassword: sharedcfg.EnvOrDefault("AUTHORITY_PASSWORD", "authority"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.PredictURL == "" {
		return nil, errors.New("PREDICT_URL is required")
	}
	switch cfg.BroadcastBackend {
	case BackendMemory, BackendRedis, BackendKafka, BackendMQTT:
	default:
		return nil, fmt.Errorf("invalid BROADCAST_BACKEND %q", cfg.BroadcastBackend)
	}
	switch cfg.SampleSource {
	case SourceSimulated, SourceMQTT:
	default:
		return nil, fmt.Errorf("invalid SAMPLE_SOURCE %q", cfg.SampleSource)
	}
	if cfg.BroadcastBackend == BackendKafka && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required for the kafka backend")
	}
	if cfg.AuthorityPassword == "" {
		return nil, errors.New("AUTHORITY_PASSWORD must not be empty")
	}

	return cfg, nil
}

// UsesMQTT reports whether any component needs the MQTT broker.
func (c *Config) UsesMQTT() bool {
	return c.BroadcastBackend == BackendMQTT || c.SampleSource == SourceMQTT || c.TelemetryEnabled
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", key, lo, hi)
	}
	return n, nil
}

func parsePredictCacheSize() int {
	if s := os.Getenv("PREDICT_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 256
}
