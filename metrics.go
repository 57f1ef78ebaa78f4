package modelguard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// every reliability layer. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	modelCalls    *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	modelCost     *prometheus.CounterVec

	fallbacksTotal *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimitDecisions *prometheus.CounterVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheSize      prometheus.Gauge
	coalescedWaits prometheus.Counter

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelguard_requests_total",
				Help: "Total requests executed through the pipeline",
			},
			[]string{"route", "outcome"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modelguard_request_duration_seconds",
				Help:    "End-to-end pipeline duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modelguard_requests_in_flight",
				Help: "Requests currently inside the pipeline",
			},
			[]string{"route"},
		),
		modelCalls: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelguard_model_calls_total",
				Help: "Successful provider calls per model",
			},
			[]string{"model", "provider"},
		),
		modelDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modelguard_model_call_duration_seconds",
				Help:    "Provider call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		modelCost: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelguard_model_cost_dollars_total",
				Help: "Estimated spend per model in dollars",
			},
			[]string{"model"},
		),
		fallbacksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelguard_fallbacks_total",
				Help: "Candidates passed over during fallback, by reason",
			},
			[]string{"model", "reason"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelguard_retries_total",
				Help: "Pipeline-level retry attempts",
			},
			[]string{"route"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modelguard_circuit_breaker_state",
				Help: "Current breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimitDecisions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelguard_rate_limit_decisions_total",
				Help: "Admission control decisions",
			},
			[]string{"route", "decision"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelguard_cache_hits_total",
				Help: "Cache hits",
			},
			[]string{"route"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelguard_cache_misses_total",
				Help: "Cache misses",
			},
			[]string{"route"},
		),
		cacheSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "modelguard_cache_size",
				Help: "Entries currently in the cache",
			},
		),
		coalescedWaits: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "modelguard_coalesced_waiters_total",
				Help: "Callers that shared another caller's in-flight computation",
			},
		),
		registry: registry,
	}
}

// RecordRequest records one finished pipeline call.
func (mc *MetricsCollector) RecordRequest(route, outcome string, duration time.Duration) {
	mc.requestsTotal.WithLabelValues(route, outcome).Inc()
	mc.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRequestStart marks a request entering the pipeline.
func (mc *MetricsCollector) RecordRequestStart(route string) {
	mc.requestsInFlight.WithLabelValues(route).Inc()
}

// RecordRequestEnd marks a request leaving the pipeline.
func (mc *MetricsCollector) RecordRequestEnd(route string) {
	mc.requestsInFlight.WithLabelValues(route).Dec()
}

// RecordModelCall records a successful provider call.
func (mc *MetricsCollector) RecordModelCall(model, provider string, duration time.Duration) {
	mc.modelCalls.WithLabelValues(model, provider).Inc()
	mc.modelDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordModelCost accumulates estimated spend for a model.
func (mc *MetricsCollector) RecordModelCost(model string, cost float64) {
	mc.modelCost.WithLabelValues(model).Add(cost)
}

// RecordFallback records a candidate passed over during the fallback walk.
func (mc *MetricsCollector) RecordFallback(model, reason string) {
	mc.fallbacksTotal.WithLabelValues(model, reason).Inc()
}

// RecordRetry records a pipeline-level retry.
func (mc *MetricsCollector) RecordRetry(route string) {
	mc.retriesTotal.WithLabelValues(route).Inc()
}

// RecordCircuitBreakerState exports a breaker's state as a gauge.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimitDecision records an admission control outcome.
func (mc *MetricsCollector) RecordRateLimitDecision(route string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	mc.rateLimitDecisions.WithLabelValues(route, decision).Inc()
}

// RecordCacheHit records a cache hit for a route.
func (mc *MetricsCollector) RecordCacheHit(route string) {
	mc.cacheHits.WithLabelValues(route).Inc()
}

// RecordCacheMiss records a cache miss for a route.
func (mc *MetricsCollector) RecordCacheMiss(route string) {
	mc.cacheMisses.WithLabelValues(route).Inc()
}

// RecordCacheSize exports the current cache entry count.
func (mc *MetricsCollector) RecordCacheSize(size int) {
	mc.cacheSize.Set(float64(size))
}

// RecordCoalescedWaiter counts a caller that attached to an in-flight
// computation instead of starting its own.
func (mc *MetricsCollector) RecordCoalescedWaiter() {
	mc.coalescedWaits.Inc()
}
