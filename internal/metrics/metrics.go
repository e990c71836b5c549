// Package metrics exposes redrive and HTTP metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vvatanabe/sqsredrive"
)

const namespace = "sqsredrive"

// Metrics owns its own registry so that several instances can coexist in one process.
type Metrics struct {
	registry        *prometheus.Registry
	messagesTotal   *prometheus.CounterVec
	redrivesTotal   *prometheus.CounterVec
	redriveDuration *prometheus.HistogramVec
	receiveErrors   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ sqsredrive.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redrive_messages_total",
			Help:      "Messages attempted by redrive, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		redrivesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redrives_total",
			Help:      "Finished redrive invocations by mode.",
		}, []string{"mode"}),
		redriveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redrive_duration_seconds",
			Help:      "Wall time of a redrive invocation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		receiveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redrive_receive_errors_total",
			Help:      "Bulk redrives stopped early by a failed DLQ receive.",
		}, []string{"mode"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.messagesTotal,
		m.redrivesTotal,
		m.redriveDuration,
		m.receiveErrors,
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveOutcome(mode sqsredrive.RedriveMode, o sqsredrive.Outcome) {
	m.messagesTotal.WithLabelValues(string(mode), o.Kind.String()).Inc()
}

func (m *Metrics) ObserveRedrive(mode sqsredrive.RedriveMode, result *sqsredrive.RedriveResult, elapsed time.Duration) {
	m.redrivesTotal.WithLabelValues(string(mode)).Inc()
	m.redriveDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	if result != nil && result.ReceiveError != "" {
		m.receiveErrors.WithLabelValues(string(mode)).Inc()
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
