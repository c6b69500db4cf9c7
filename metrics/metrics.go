// Package metrics provides Prometheus metrics for the bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	// Host function metrics
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	ItemFailures *prometheus.CounterVec

	// HTTP help server metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPDRunning        prometheus.Gauge
}

// Default is registered with the default Prometheus registry.
var Default = New("rtools", prometheus.DefaultRegisterer)

// New creates a Metrics instance registered with reg under the given namespace.
// Pass a fresh prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_calls_total",
			Help:      "Total host function invocations by function and outcome",
		}, []string{"function", "status"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "host_call_duration_seconds",
			Help:      "Host function latency by function",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"function"}),
		ItemFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Per-item failures inside batch operations by function and error type",
		}, []string{"function", "type"}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "httpd_requests_total",
			Help:      "Total help server requests by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "httpd_request_duration_seconds",
			Help:      "Help server request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		HTTPDRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "httpd_running",
			Help:      "1 while the help server listener is bound",
		}),
	}
}

// RecordCall records one host function invocation.
func (m *Metrics) RecordCall(function, status string, duration time.Duration) {
	m.CallsTotal.WithLabelValues(function, status).Inc()
	m.CallDuration.WithLabelValues(function).Observe(duration.Seconds())
}

// RecordItemFailure records a failed item inside a batch operation.
func (m *Metrics) RecordItemFailure(function, errorType string) {
	m.ItemFailures.WithLabelValues(function, errorType).Inc()
}

// RecordHTTPRequest records one help server request.
func (m *Metrics) RecordHTTPRequest(method, route, code string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// SetHTTPDRunning updates the listener gauge.
func (m *Metrics) SetHTTPDRunning(running bool) {
	if running {
		m.HTTPDRunning.Set(1)
		return
	}
	m.HTTPDRunning.Set(0)
}
