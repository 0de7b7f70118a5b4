// Package metrics exposes Prometheus metrics for classification runs,
// evaluations, the event bus and the HTTP server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "review_topics"

// Metrics holds all application metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Classifier metrics
	LLMRequests  *prometheus.CounterVec   // labels: model, status
	LLMLatency   *prometheus.HistogramVec // labels: model
	CacheLookups *prometheus.CounterVec   // labels: result

	// Evaluation metrics
	Evaluations       *prometheus.CounterVec   // labels: model, status
	EvaluationLatency *prometheus.HistogramVec // labels: model

	// Bus metrics
	BusEventsPublished *prometheus.CounterVec   // labels: topic, status
	BusEventLatency    *prometheus.HistogramVec // labels: topic

	// HTTP metrics
	HTTPRequests         *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration         *prometheus.HistogramVec // labels: method, route
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates a metrics instance with all collectors registered,
// including the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Chat model requests by model and outcome",
			},
			[]string{"model", "status"},
		),
		LLMLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Chat model request latency",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"model"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "answer_cache_lookups_total",
				Help:      "Answer cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Evaluation runs by model and outcome",
			},
			[]string{"model", "status"},
		),
		EvaluationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Time to compute one evaluation report",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"model"},
		),
		BusEventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_events_published_total",
				Help:      "Events published on the bus by topic and outcome",
			},
			[]string{"topic", "status"},
		),
		BusEventLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bus_publish_duration_seconds",
				Help:      "Bus publish latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LLMRequests,
		m.LLMLatency,
		m.CacheLookups,
		m.Evaluations,
		m.EvaluationLatency,
		m.BusEventsPublished,
		m.BusEventLatency,
		m.HTTPRequests,
		m.HTTPDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordLLMRequest records one chat model request.
func (m *Metrics) RecordLLMRequest(model string, latency time.Duration, err error) {
	m.LLMRequests.WithLabelValues(model, status(err)).Inc()
	m.LLMLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// RecordCacheResult records one answer cache lookup.
func (m *Metrics) RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordEvaluation records one evaluation run.
func (m *Metrics) RecordEvaluation(model string, duration time.Duration, err error) {
	m.Evaluations.WithLabelValues(model, status(err)).Inc()
	m.EvaluationLatency.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordBusPublish records one bus publish.
func (m *Metrics) RecordBusPublish(topic string, latency time.Duration, err error) {
	m.BusEventsPublished.WithLabelValues(topic, status(err)).Inc()
	m.BusEventLatency.WithLabelValues(topic).Observe(latency.Seconds())
}

// RecordHTTP records one served HTTP request.
func (m *Metrics) RecordHTTP(method, route string, code int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, statusCode(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
