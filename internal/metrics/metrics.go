// Package metrics provides Prometheus metrics collection for the iris service.
// It defines the prediction, validation, model and HTTP metrics exposed via the
// Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "iris"

// Metrics holds all Prometheus metrics for the inference service.
type Metrics struct {
	// Prediction metrics
	Predictions        *prometheus.CounterVec // Successful predictions by label
	ValidationFailures prometheus.Counter     // Requests rejected by validation
	PredictionErrors   *prometheus.CounterVec // Failed predictions by kind
	PredictionLatency  prometheus.Histogram   // Scoring latency in seconds
	Confidence         prometheus.Histogram   // Distribution of prediction confidence

	// Model metrics
	ModelLoaded prometheus.Gauge // 1 when a model is bound, else 0

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route, method and status code
	HTTPDuration *prometheus.HistogramVec // Request duration by route
	StreamConns  prometheus.Gauge         // Open websocket prediction streams

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of successful predictions by predicted label",
		}, []string{"label"}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of requests rejected by input validation",
		}),
		PredictionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Total number of failed predictions by error kind",
		}, []string{"kind"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "Prediction latency in seconds, validation excluded",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		Confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_confidence",
			Help:      "Distribution of prediction confidence scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "Whether a model is bound to the service (1) or not (0)",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"route"}),
		StreamConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connections",
			Help:      "Number of open websocket prediction streams",
		}),
		gatherer: gatherer,
	}
}

// Gatherer returns the gatherer backing these metrics, for serving /metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// ErrorRate returns failed predictions as a share of all prediction attempts
// that passed validation, or 0 if none have been recorded.
func (m *Metrics) ErrorRate() float64 {
	var total, failed float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case namespace + "_predictions_total":
			for _, metric := range mf.Metric {
				total += metric.GetCounter().GetValue()
			}
		case namespace + "_prediction_errors_total":
			for _, metric := range mf.Metric {
				failed += metric.GetCounter().GetValue()
			}
		}
	}

	if total+failed == 0 {
		return 0
	}
	return failed / (total + failed)
}
