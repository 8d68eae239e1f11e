// Package metrics registers the Prometheus collectors of the generation
// pipeline and exposes small helpers to record them.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dedup metrics
	dedupOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_dedup_outcomes_total",
			Help: "Dedup check results by artifact kind and outcome",
		},
		[]string{"kind", "outcome"}, // reserved, hit_pending, hit_completed
	)

	// Parser metrics
	parseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_parse_outcomes_total",
			Help: "Structured parse results by winning strategy",
		},
		[]string{"strategy"}, // strategy name or "exhausted"
	)

	// Provider metrics
	providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scry_provider_call_duration_seconds",
			Help:    "Provider call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 11), // 0.25s to ~256s
		},
		[]string{"provider", "model", "status"},
	)

	rateLimiterWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scry_rate_limiter_wait_seconds",
			Help:    "Time spent waiting on the client side rate limiter",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"provider"},
	)

	routingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_routing_decisions_total",
			Help: "Routing decisions by resolution source and provider",
		},
		[]string{"source", "provider"},
	)

	// Engine metrics
	chunkOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_chunk_outcomes_total",
			Help: "Chunk executions by artifact kind and outcome",
		},
		[]string{"kind", "outcome"}, // requeued, completed, failed, retry
	)

	itemsProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_items_produced_total",
			Help: "Validated items appended to artifacts",
		},
		[]string{"kind"},
	)

	itemsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_items_dropped_total",
			Help: "Items dropped by post-parse validation",
		},
		[]string{"kind"},
	)

	// Event metrics
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_events_published_total",
			Help: "Lifecycle events by name and publish status",
		},
		[]string{"event", "status"},
	)

	// Queue metrics
	taskOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_task_outcomes_total",
			Help: "Queue task executions by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// HTTP metrics
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scry_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scry_task_queue_depth",
			Help: "Tasks buffered in the in-memory dispatch channel",
		},
	)
)

// RecordDedup records the outcome of a dedup check.
func RecordDedup(kind, outcome string) {
	dedupOutcomes.WithLabelValues(kind, outcome).Inc()
}

// RecordParse records which strategy produced a value, or "exhausted".
func RecordParse(strategy string) {
	parseOutcomes.WithLabelValues(strategy).Inc()
}

// RecordProviderCall records a provider call duration.
func RecordProviderCall(provider, model, status string, d time.Duration) {
	providerCallDuration.WithLabelValues(provider, model, status).Observe(d.Seconds())
}

// RecordRateLimiterWait records time spent waiting for a rate limit token.
func RecordRateLimiterWait(provider string, d time.Duration) {
	rateLimiterWait.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordRoutingDecision records where a routing decision came from.
func RecordRoutingDecision(source, provider string) {
	routingDecisions.WithLabelValues(source, provider).Inc()
}

// RecordChunk records the outcome of one chunk execution.
func RecordChunk(kind, outcome string) {
	chunkOutcomes.WithLabelValues(kind, outcome).Inc()
}

// RecordItems records appended and dropped item counts for a chunk.
func RecordItems(kind string, appended, dropped int) {
	if appended > 0 {
		itemsProduced.WithLabelValues(kind).Add(float64(appended))
	}
	if dropped > 0 {
		itemsDropped.WithLabelValues(kind).Add(float64(dropped))
	}
}

// RecordEvent records a lifecycle event publish attempt.
func RecordEvent(event, status string) {
	eventsPublished.WithLabelValues(event, status).Inc()
}

// RecordTask records a queue task outcome.
func RecordTask(taskType, outcome string) {
	taskOutcomes.WithLabelValues(taskType, outcome).Inc()
}

// SetQueueDepth updates the dispatch channel depth gauge.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(route, method string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}
