// Package metrics holds the Prometheus collectors for the webhook service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	WebhookRejected    *prometheus.CounterVec
	RepliesTotal       *prometheus.CounterVec
	AgentDuration      prometheus.Histogram
	CollaboratorErrors *prometheus.CounterVec
}

// New creates and registers the collectors, plus Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linegpt_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linegpt_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "path"},
		),

		WebhookRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linegpt_webhook_rejected_total",
				Help: "Webhook deliveries rejected before processing",
			},
			[]string{"reason"}, // "signature" | "body" | "json"
		),

		RepliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linegpt_replies_total",
				Help: "Replies by outcome",
			},
			[]string{"outcome"}, // "answered" | "salvaged" | "failed"
		),

		AgentDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linegpt_agent_duration_seconds",
				Help:    "Agent invocation latency",
				Buckets: []float64{.5, 1, 2, 5, 10, 20, 40, 60, 120, 300},
			},
		),

		CollaboratorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linegpt_collaborator_errors_total",
				Help: "Failed calls to memory, reply and audit collaborators",
			},
			[]string{"component"}, // "memory_load" | "memory_append" | "reply" | "audit"
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhookRejected,
		m.RepliesTotal,
		m.AgentDuration,
		m.CollaboratorErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
