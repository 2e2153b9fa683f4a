// Package metric provides Prometheus-based metrics for the connector
// runtime: message counts, error counts, processing durations and queue
// depths, labeled by flow and component.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics contains the runtime-level metrics shared by all flows.
type Metrics struct {
	MessagesReceived   *prometheus.CounterVec
	MessagesProcessed  *prometheus.CounterVec
	MessagesPublished  *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	QueueDepth         *prometheus.GaugeVec
}

// NewMetrics creates the runtime metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aiconnector",
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Total number of messages received by a component",
			},
			[]string{"flow", "component"},
		),
		MessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aiconnector",
				Subsystem: "messages",
				Name:      "processed_total",
				Help:      "Total number of messages processed",
			},
			[]string{"flow", "component", "status"},
		),
		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aiconnector",
				Subsystem: "messages",
				Name:      "published_total",
				Help:      "Total number of messages published to the broker",
			},
			[]string{"flow", "component"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aiconnector",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of component errors",
			},
			[]string{"flow", "component", "kind"},
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aiconnector",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Component invoke duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"flow", "component"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "aiconnector",
				Subsystem: "queues",
				Name:      "depth",
				Help:      "Current input queue depth of a component group",
			},
			[]string{"flow", "component"},
		),
	}
}

// MetricsRegistry owns the Prometheus registry and the runtime metrics.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewMetricsRegistry creates a registry with the runtime metrics and the
// standard Go collectors registered.
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
	}

	registry.prometheusRegistry.MustRegister(
		registry.Metrics.MessagesReceived,
		registry.Metrics.MessagesProcessed,
		registry.Metrics.MessagesPublished,
		registry.Metrics.ErrorsTotal,
		registry.Metrics.ProcessingDuration,
		registry.Metrics.QueueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}
