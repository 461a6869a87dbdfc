package metrics

import (
	"math"
	"testing"
	"time"

	"iris-service/internal/contract"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ contract.MetricsInterface = (*ServiceMetrics)(nil)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewWithRegistry(registry), registry
}

func TestNewWithRegistry(t *testing.T) {
	m, registry := newTestMetrics(t)

	if m.Gatherer() != registry {
		t.Error("Gatherer should be the registry the metrics were created with")
	}

	// Touch the vectors so they are reported.
	m.Predictions.WithLabelValues("setosa")
	m.PredictionErrors.WithLabelValues(contract.ErrorKindScorer)
	m.HTTPRequests.WithLabelValues("/health", "GET", "200")
	m.HTTPDuration.WithLabelValues("/health")

	expected := []string{
		"iris_predictions_total",
		"iris_validation_failures_total",
		"iris_prediction_errors_total",
		"iris_prediction_latency_seconds",
		"iris_prediction_confidence",
		"iris_model_loaded",
		"iris_http_requests_total",
		"iris_http_request_duration_seconds",
		"iris_stream_connections",
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestNewWithRegistry_DuplicatePanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewWithRegistry(registry)

	defer func() {
		if recover() == nil {
			t.Error("expected panic when registering metrics twice")
		}
	}()
	NewWithRegistry(registry)
}

func TestServiceMetrics_Predictions(t *testing.T) {
	m, _ := newTestMetrics(t)
	w := NewServiceMetrics(m)

	w.PredictionInc("setosa")
	w.PredictionInc("setosa")
	w.PredictionInc("virginica")

	if got := testutil.ToFloat64(m.Predictions.WithLabelValues("setosa")); got != 2 {
		t.Errorf("Expected 2 setosa predictions, got %f", got)
	}
	if got := testutil.ToFloat64(m.Predictions.WithLabelValues("virginica")); got != 1 {
		t.Errorf("Expected 1 virginica prediction, got %f", got)
	}
	if got := testutil.CollectAndCount(m.Predictions); got != 2 {
		t.Errorf("Expected 2 label series, got %d", got)
	}
}

func TestServiceMetrics_Failures(t *testing.T) {
	m, _ := newTestMetrics(t)
	w := NewServiceMetrics(m)

	w.ValidationFailureInc()
	w.PredictionErrorInc(contract.ErrorKindUnavailable)
	w.PredictionErrorInc(contract.ErrorKindUnavailable)
	w.PredictionErrorInc(contract.ErrorKindInconsistency)

	if got := testutil.ToFloat64(m.ValidationFailures); got != 1 {
		t.Errorf("Expected 1 validation failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.PredictionErrors.WithLabelValues(contract.ErrorKindUnavailable)); got != 2 {
		t.Errorf("Expected 2 unavailable errors, got %f", got)
	}
	if got := testutil.ToFloat64(m.PredictionErrors.WithLabelValues(contract.ErrorKindInconsistency)); got != 1 {
		t.Errorf("Expected 1 inconsistency error, got %f", got)
	}
}

func TestServiceMetrics_Histograms(t *testing.T) {
	m, registry := newTestMetrics(t)
	w := NewServiceMetrics(m)

	w.PredictionLatencyObserve(0.0002)
	w.ConfidenceObserve(0.97)
	w.ConfidenceObserve(0.61)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "iris_prediction_confidence" {
			continue
		}
		h := mf.Metric[0].GetHistogram()
		if h.GetSampleCount() != 2 {
			t.Errorf("Expected 2 confidence observations, got %d", h.GetSampleCount())
		}
		if sum := h.GetSampleSum(); math.Abs(sum-1.58) > 1e-9 {
			t.Errorf("Expected confidence sum 1.58, got %f", sum)
		}
	}

	if got := testutil.CollectAndCount(m.PredictionLatency); got != 1 {
		t.Errorf("Expected latency histogram to be collected, got %d", got)
	}
}

func TestServiceMetrics_ModelLoaded(t *testing.T) {
	m, _ := newTestMetrics(t)
	w := NewServiceMetrics(m)

	w.ModelLoadedSet(true)
	if got := testutil.ToFloat64(m.ModelLoaded); got != 1 {
		t.Errorf("Expected model_loaded 1, got %f", got)
	}

	w.ModelLoadedSet(false)
	if got := testutil.ToFloat64(m.ModelLoaded); got != 0 {
		t.Errorf("Expected model_loaded 0, got %f", got)
	}
}

func TestHTTPMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)
	h := NewHTTPMetrics(m)

	h.ObserveRequest("/predict", "POST", 200, 3*time.Millisecond)
	h.ObserveRequest("/predict", "POST", 422, time.Millisecond)
	h.ObserveRequest("/predict", "POST", 200, time.Millisecond)
	h.ObserveRequest("/odd", "GET", 42, time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "POST", "200")); got != 2 {
		t.Errorf("Expected 2 successful predict requests, got %f", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "POST", "422")); got != 1 {
		t.Errorf("Expected 1 rejected predict request, got %f", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/odd", "GET", "unknown")); got != 1 {
		t.Errorf("Expected out of range code to be labelled unknown, got %f", got)
	}

	h.StreamOpened()
	h.StreamOpened()
	h.StreamClosed()
	if got := testutil.ToFloat64(m.StreamConns); got != 1 {
		t.Errorf("Expected 1 open stream, got %f", got)
	}
}

func TestErrorRate(t *testing.T) {
	m, _ := newTestMetrics(t)
	w := NewServiceMetrics(m)

	if rate := m.ErrorRate(); rate != 0 {
		t.Errorf("Expected 0 error rate with no predictions, got %f", rate)
	}

	w.PredictionInc("setosa")
	w.PredictionInc("versicolor")
	w.PredictionInc("virginica")
	w.PredictionErrorInc(contract.ErrorKindScorer)

	if rate := m.ErrorRate(); rate != 0.25 {
		t.Errorf("Expected error rate 0.25, got %f", rate)
	}
}
