package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/waveguard-alert-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/waveguard-alert-service/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/waveguard-alert-service/internal/adapter/mqtt"
	"github.com/couchcryptid/waveguard-alert-service/internal/adapter/predict"
	redisadapter "github.com/couchcryptid/waveguard-alert-service/internal/adapter/redis"
	"github.com/couchcryptid/waveguard-alert-service/internal/config"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/hub"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
	"github.com/couchcryptid/waveguard-alert-service/internal/session"
	"github.com/couchcryptid/waveguard-alert-service/internal/source"
	"github.com/jonboulle/clockwork"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	client := predict.NewClient(cfg.PredictURL, cfg.PredictTimeout, cfg.PredictRetries, logger)
	var predictor domain.Predictor = client
	if cfg.PredictCacheSize > 0 {
		predictor = predict.NewCachedPredictor(client, cfg.PredictCacheSize, metrics)
		logger.Info("prediction cache enabled", "size", cfg.PredictCacheSize)
	}

	var mqttClient *mqttadapter.Client
	if cfg.UsesMQTT() {
		mqttClient, err = mqttadapter.Connect(cfg, logger)
		if err != nil {
			logger.Error("failed to connect to mqtt broker", "error", err)
			os.Exit(1)
		}
	}

	hubOpts := []hub.Option{hub.WithBufferSize(cfg.HubBufferSize)}
	if transport := newTransport(ctx, cfg, mqttClient, logger, metrics); transport != nil {
		hubOpts = append(hubOpts, hub.WithTransport(transport))
	}
	alerts := hub.New(logger, metrics, hubOpts...)
	logger.Info("alert hub ready", "backend", cfg.BroadcastBackend)

	samples, err := newSampleSource(cfg, mqttClient, logger)
	if err != nil {
		logger.Error("failed to start sample source", "error", err)
		os.Exit(1)
	}

	var telemetry httpadapter.TelemetryFeed
	if cfg.TelemetryEnabled {
		feed, err := mqttadapter.NewTelemetryFeed(mqttClient, cfg.MQTTTelemetryTopic, logger)
		if err != nil {
			logger.Error("failed to subscribe to telemetry", "error", err)
			os.Exit(1)
		}
		telemetry = feed
	}

	manager := session.NewManager(clockwork.NewRealClock(), session.Settings{
		DebounceInterval: cfg.DebounceInterval,
		PublishTimeout:   cfg.PublishTimeout,
		HistorySize:      cfg.HistorySize,
		DangerMessage:    cfg.DangerAlertMessage,
	}, alerts, predictor, samples, logger, metrics)

	ready := observability.ReadinessChecks{alerts}
	if mqttClient != nil {
		ready = append(ready, mqttClient)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:     ready,
		Sessions:  manager,
		Auth:      domain.NewAuthenticator(cfg.AuthorityUsername, cfg.AuthorityPassword),
		Telemetry: telemetry,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start alert relay.
	go func() {
		if err := alerts.Run(ctx); err != nil {
			logger.Error("alert relay error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	manager.Shutdown()
	if err := alerts.Close(); err != nil {
		logger.Error("alert hub close error", "error", err)
	}
	if mqttClient != nil && cfg.BroadcastBackend != config.BackendMQTT {
		if err := mqttClient.Close(); err != nil {
			logger.Error("mqtt close error", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// newTransport returns nil for the in-process backend.
func newTransport(ctx context.Context, cfg *config.Config, mqttClient *mqttadapter.Client, logger *slog.Logger, metrics *observability.Metrics) hub.Transport {
	switch cfg.BroadcastBackend {
	case config.BackendRedis:
		t := redisadapter.NewTransport(cfg, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := t.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable at startup, relay will keep retrying", "addr", cfg.RedisAddr, "error", err)
		}
		return t
	case config.BackendKafka:
		return kafkaadapter.NewTransport(cfg, logger)
	case config.BackendMQTT:
		return mqttadapter.NewTransport(mqttClient, cfg.MQTTTopicPrefix, metrics)
	default:
		return nil
	}
}

func newSampleSource(cfg *config.Config, mqttClient *mqttadapter.Client, logger *slog.Logger) (domain.RiskSampleSource, error) {
	if cfg.SampleSource == config.SourceMQTT {
		logger.Info("sampling from device feed", "topic", cfg.MQTTSampleTopic)
		return mqttadapter.NewSampleSource(mqttClient, cfg.MQTTSampleTopic, logger)
	}
	logger.Info("sampling from simulator", "interval", cfg.SampleInterval)
	return source.NewSimulated(clockwork.NewRealClock(), cfg.SampleInterval), nil
}
