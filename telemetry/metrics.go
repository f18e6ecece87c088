package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the process's Prometheus registry plus the fixed set of
// instruments named in spec §4.13: task lifecycle transitions, cache
// hit/miss, limiter throttles, retry counts, and webhook outcomes.
type Collector struct {
	registry *prometheus.Registry

	TaskTransitions *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	LimiterThrottles *prometheus.CounterVec

	RetryAttempts *prometheus.CounterVec

	WebhookAccepted  *prometheus.CounterVec
	WebhookDuplicate *prometheus.CounterVec
	WebhookRejected  *prometheus.CounterVec
}

// NewCollector builds and registers every instrument on a fresh
// registry, so one process never leaks metrics into another's test run.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.TaskTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmesh",
		Subsystem: "task",
		Name:      "transitions_total",
		Help:      "Task lifecycle state transitions, by kind and resulting state.",
	}, []string{"kind", "state"})

	c.TaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentmesh",
		Subsystem: "task",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of a task execution from claim to terminal state.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	c.CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmesh",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache lookups served from a cached value, by purpose.",
	}, []string{"purpose"})

	c.CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmesh",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache lookups that required a fresh call, by purpose.",
	}, []string{"purpose"})

	c.LimiterThrottles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmesh",
		Subsystem: "limiter",
		Name:      "throttles_total",
		Help:      "Calls delayed or rejected by a concurrency gate, token bucket, or domain backoff.",
	}, []string{"limiter"})

	c.RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmesh",
		Subsystem: "worker",
		Name:      "retry_attempts_total",
		Help:      "Job retries issued by the worker pool, by job kind.",
	}, []string{"kind"})

	c.WebhookAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmesh",
		Subsystem: "webhook",
		Name:      "accepted_total",
		Help:      "Webhook deliveries accepted and enqueued, by endpoint.",
	}, []string{"endpoint"})

	c.WebhookDuplicate = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmesh",
		Subsystem: "webhook",
		Name:      "duplicate_total",
		Help:      "Webhook deliveries recognized as a repeat of an already-audited external id.",
	}, []string{"endpoint"})

	c.WebhookRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmesh",
		Subsystem: "webhook",
		Name:      "rejected_total",
		Help:      "Webhook deliveries rejected before enqueue, by endpoint and reason.",
	}, []string{"endpoint", "reason"})

	c.registry.MustRegister(
		c.TaskTransitions, c.TaskDuration,
		c.CacheHits, c.CacheMisses,
		c.LimiterThrottles, c.RetryAttempts,
		c.WebhookAccepted, c.WebhookDuplicate, c.WebhookRejected,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
