// Package metrics exposes Prometheus collectors for the HTTP layer and the
// background index workers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	Completions     prometheus.Counter
	Payments        prometheus.Counter
	IndexTasks      *prometheus.CounterVec
	LiveSubscribers prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "classbook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "completions_marked_total",
			Help:      "Completion upserts, including idempotent repeats.",
		}),
		Payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "payments_recorded_total",
			Help:      "Payments committed against fee periods.",
		}),
		IndexTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "owner_index_tasks_total",
			Help:      "Owner index tasks processed by op and result.",
		}, []string{"op", "result"}),
		LiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "classbook",
			Name:      "live_subscribers",
			Help:      "Open SSE and WebSocket subscriptions.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration, m.Completions, m.Payments, m.IndexTasks, m.LiveSubscribers,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
