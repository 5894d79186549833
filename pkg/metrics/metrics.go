// Package metrics exposes Prometheus instruments for the analysis pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bubble_lens"

// Metrics holds the instruments. Each instance owns its registry so tests can
// build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Requests
	AnalysesTotal   *prometheus.CounterVec
	AnalysisLatency prometheus.Histogram
	InFlight        prometheus.Gauge

	// Providers
	ProviderLatency *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec

	// Capture
	CapturesTotal  *prometheus.CounterVec
	CaptureLatency prometheus.Histogram

	// Artifacts
	ArtifactsSwept prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "requests_total",
			Help:      "Analysis requests by outcome",
		}, []string{"outcome"}),
		AnalysisLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End-to-end analysis latency in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "in_flight",
			Help:      "Analyses currently running",
		}),

		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Provider calls that failed",
		}, []string{"provider"}),

		CapturesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "total",
			Help:      "Bubblemap captures by status",
		}, []string{"status"}),
		CaptureLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "duration_seconds",
			Help:      "Browser capture latency in seconds",
			Buckets:   []float64{5, 10, 15, 20, 30, 45, 60, 90, 120},
		}),

		ArtifactsSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifact",
			Name:      "swept_total",
			Help:      "Stale screenshot files removed by the sweeper",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Helpers. All are nil-safe so callers can run without metrics.

func (m *Metrics) RecordAnalysis(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisLatency.Observe(seconds)
}

func (m *Metrics) RecordProvider(provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.ProviderLatency.WithLabelValues(provider).Observe(seconds)
	if err != nil {
		m.ProviderErrors.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) RecordCapture(status string, seconds float64) {
	if m == nil {
		return
	}
	m.CapturesTotal.WithLabelValues(status).Inc()
	m.CaptureLatency.Observe(seconds)
}

func (m *Metrics) RecordSwept(n int) {
	if m == nil {
		return
	}
	m.ArtifactsSwept.Add(float64(n))
}

func (m *Metrics) Begin() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
