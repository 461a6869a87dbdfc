package metrics

import (
	"strconv"
	"time"
)

// ServiceMetrics adapts Metrics to the contract layer's metrics interface
type ServiceMetrics struct {
	m *Metrics
}

func NewServiceMetrics(m *Metrics) *ServiceMetrics {
	return &ServiceMetrics{m: m}
}

func (w *ServiceMetrics) PredictionInc(label string) {
	w.m.Predictions.WithLabelValues(label).Inc()
}

func (w *ServiceMetrics) ValidationFailureInc() {
	w.m.ValidationFailures.Inc()
}

func (w *ServiceMetrics) PredictionErrorInc(kind string) {
	w.m.PredictionErrors.WithLabelValues(kind).Inc()
}

func (w *ServiceMetrics) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *ServiceMetrics) ConfidenceObserve(confidence float64) {
	w.m.Confidence.Observe(confidence)
}

func (w *ServiceMetrics) ModelLoadedSet(loaded bool) {
	if loaded {
		w.m.ModelLoaded.Set(1)
		return
	}
	w.m.ModelLoaded.Set(0)
}

// HTTPMetrics is used by the server's instrumentation middleware
type HTTPMetrics struct {
	m *Metrics
}

func NewHTTPMetrics(m *Metrics) *HTTPMetrics {
	return &HTTPMetrics{m: m}
}

func (h *HTTPMetrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	h.m.HTTPRequests.WithLabelValues(route, method, statusCode(code)).Inc()
	h.m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (h *HTTPMetrics) StreamOpened() {
	h.m.StreamConns.Inc()
}

func (h *HTTPMetrics) StreamClosed() {
	h.m.StreamConns.Dec()
}

func statusCode(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code)
}
