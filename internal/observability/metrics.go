package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the alert service.
type Metrics struct {
	// Prediction gateway metrics.
	Predictions        *prometheus.CounterVec // labels: outcome={success,error,stale}
	PredictionDuration prometheus.Histogram
	PredictionCache    *prometheus.CounterVec // labels: result={hit,miss}
	StaleResponses     prometheus.Counter

	// Alert hub metrics.
	AlertsPublished *prometheus.CounterVec // labels: topic
	AlertsDelivered *prometheus.CounterVec // labels: topic
	AlertsDropped   *prometheus.CounterVec // labels: topic
	HubSubscribers  prometheus.Gauge
	HubConnected    prometheus.Gauge
	HubReconnects   prometheus.Counter

	// Viewer session metrics.
	SessionsActive *prometheus.GaugeVec // labels: role={local,authority}
	Overrides      prometheus.Counter
	Samples        prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.Predictions,
		m.PredictionDuration,
		m.PredictionCache,
		m.StaleResponses,
		m.AlertsPublished,
		m.AlertsDelivered,
		m.AlertsDropped,
		m.HubSubscribers,
		m.HubConnected,
		m.HubReconnects,
		m.SessionsActive,
		m.Overrides,
		m.Samples,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "waveguard",
			Name:      "prediction_duration_seconds",
			Help:      "Prediction service round trip in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PredictionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "prediction_cache_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "stale_responses_total",
			Help:      "Prediction responses discarded because a newer request was issued.",
		}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "alerts_published_total",
			Help:      "Alerts published by topic.",
		}, []string{"topic"}),
		AlertsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "alerts_delivered_total",
			Help:      "Alerts handed to subscribers by topic.",
		}, []string{"topic"}),
		AlertsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "alerts_dropped_total",
			Help:      "Alerts dropped because a subscriber queue was full.",
		}, []string{"topic"}),
		HubSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "waveguard",
			Name:      "hub_subscribers",
			Help:      "Current alert hub subscriptions.",
		}),
		HubConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "waveguard",
			Name:      "hub_connected",
			Help:      "1 when the hub is subscribed to its broker transport, 0 otherwise.",
		}),
		HubReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "hub_reconnects_total",
			Help:      "Broker transport resubscriptions after a disconnect.",
		}),
		SessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "waveguard",
			Name:      "sessions_active",
			Help:      "Connected viewer sessions by role.",
		}, []string{"role"}),
		Overrides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "overrides_total",
			Help:      "Local sessions forced into Danger by a broadcast.",
		}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waveguard",
			Name:      "samples_total",
			Help:      "Risk samples applied by local sessions.",
		}),
	}
}
