// Command emulator stands in for the buoy hardware. It publishes wave period
// samples and IMU telemetry to the MQTT broker the service reads from.
//
// Usage:
//
//	MQTT_BROKER=tcp://localhost:1883 go run ./cmd/emulator -interval 4s
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	mqttadapter "github.com/couchcryptid/waveguard-alert-service/internal/adapter/mqtt"
	"github.com/couchcryptid/waveguard-alert-service/internal/config"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
	"github.com/couchcryptid/waveguard-alert-service/internal/source"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	interval := flag.Duration("interval", source.DefaultInterval, "time between wave samples")
	telemetryEvery := flag.Duration("telemetry-interval", time.Second, "time between IMU readings, 0 disables")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.MQTTClientID = fmt.Sprintf("waveguard-emulator-%d", time.Now().Unix())
	cfg.LogFormat = "text"
	logger := observability.NewLogger(cfg)

	client, err := mqttadapter.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck // disconnect never fails

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	cancel := source.NewSimulated(clock, *interval).Subscribe(func(s domain.RiskSample) {
		if err := publishJSON(client, cfg.MQTTSampleTopic, s); err != nil {
			logger.Error("publish sample failed", "error", err)
			return
		}
		logger.Info("sample published", "period_seconds", s.PeriodSeconds, "tier", s.Tier())
	})
	defer cancel()

	if *telemetryEvery <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := clock.NewTicker(*telemetryEvery)
	defer ticker.Stop()

	start := clock.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.Chan():
			r := imuReading(now.Sub(start))
			if err := publishJSON(client, cfg.MQTTTelemetryTopic, r); err != nil {
				logger.Error("publish telemetry failed", "error", err)
			}
		}
	}
}

// imuReading models a buoy rolling on a 10 s swell with sensor noise.
func imuReading(elapsed time.Duration) domain.TelemetryReading {
	phase := 2 * math.Pi * elapsed.Seconds() / 10
	return domain.TelemetryReading{
		Roll:   12*math.Sin(phase) + rand.NormFloat64(),
		AccelX: 0.8*math.Cos(phase) + 0.05*rand.NormFloat64(),
		AccelY: 0.3*math.Sin(2*phase) + 0.05*rand.NormFloat64(),
		AccelZ: 9.81 + 0.4*math.Sin(phase) + 0.05*rand.NormFloat64(),
	}
}

func publishJSON(client *mqttadapter.Client, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return client.Publish(topic, data)
}
