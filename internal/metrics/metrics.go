// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orderscan"

// Metrics owns a registry so tests and multiple servers do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	actions      *prometheus.CounterVec
	scans        *prometheus.CounterVec
	qrCodes      *prometheus.CounterVec
}

// New registers the HTTP and domain collectors plus any extra ones, such
// as the upstream client's.
func New(extra ...prometheus.Collector) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"method", "path"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "actions_total",
			Help:      "Order actions by kind and outcome.",
		}, []string{"action", "result"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "parsed_total",
			Help:      "Scanned identifiers by matching strategy.",
		}, []string{"source"}),
		qrCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qr",
			Name:      "generated_total",
			Help:      "QR codes rendered by format.",
		}, []string{"format"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.actions,
		m.scans,
		m.qrCodes,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	for _, c := range extra {
		m.Registry.MustRegister(c)
	}
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one finished request. path should be the route
// template so ids do not explode the label set.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAction counts an order action outcome.
func (m *Metrics) RecordAction(action string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.actions.WithLabelValues(action, result).Inc()
}

// ScanRejected is the source label for input no matcher accepted.
const ScanRejected = "none"

// RecordScan counts a parsed identifier by the matcher that accepted it.
func (m *Metrics) RecordScan(source string) {
	if source == "" {
		source = ScanRejected
	}
	m.scans.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordQR(format string) {
	m.qrCodes.WithLabelValues(format).Inc()
}
