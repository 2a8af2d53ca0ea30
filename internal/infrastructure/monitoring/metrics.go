package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Outbound call metrics
	OutboundCalls    *prometheus.CounterVec
	OutboundDuration *prometheus.HistogramVec
	OutboundRetries  *prometheus.CounterVec

	// Circuit breaker metrics
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec

	// Credential validation metrics
	Validations      *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
	CacheStaleServed prometheus.Counter
	CacheEntries     prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds headline metric values for the JSON ops API
type Snapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalErrors      int64   `json:"total_errors"`
	AvgDurationMs    float64 `json:"avg_duration_ms"`
	OutboundCalls    int64   `json:"outbound_calls"`
	OutboundFailures int64   `json:"outbound_failures"`
	BreakerRejected  int64   `json:"breaker_rejected"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	StaleServed      int64   `json:"stale_served"`
	UptimeSeconds    float64 `json:"uptime_seconds"`

	totalDuration float64
	requestCount  int64
}

// NewMetrics creates a metrics collector registered on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector on a specific registerer,
// letting tests construct isolated instances
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicecore_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		OutboundCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecore_outbound_calls_total",
				Help: "Total number of outbound dependency calls",
			},
			[]string{"dependency", "outcome"},
		),
		OutboundDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicecore_outbound_duration_seconds",
				Help:    "Outbound call duration in seconds, all attempts included",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"dependency"},
		),
		OutboundRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecore_outbound_retries_total",
				Help: "Total number of retry attempts against dependencies",
			},
			[]string{"dependency"},
		),

		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "servicecore_breaker_state",
				Help: "Circuit breaker state per dependency (0=closed, 1=half-open, 2=open)",
			},
			[]string{"dependency"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecore_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"dependency", "to"},
		),
		BreakerRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecore_breaker_rejections_total",
				Help: "Calls rejected without I/O because the circuit was open",
			},
			[]string{"dependency"},
		),

		Validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecore_validations_total",
				Help: "Credential validation outcomes",
			},
			[]string{"result"},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "servicecore_validation_cache_hits_total",
				Help: "Credential validations served from cache",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "servicecore_validation_cache_misses_total",
				Help: "Credential validations that missed the cache",
			},
		),
		CacheEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "servicecore_validation_cache_evictions_total",
				Help: "Cache entries removed by TTL expiry",
			},
		),
		CacheStaleServed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "servicecore_validation_cache_stale_served_total",
				Help: "Expired identities served while the circuit was open",
			},
		),
		CacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "servicecore_validation_cache_entries",
				Help: "Current number of cached identities",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "servicecore_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	return m
}

// RecordHTTPRequest records an inbound HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	m.snapshot.requestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordOutbound records the final outcome of an outbound call
func (m *Metrics) RecordOutbound(dependency, outcome string, duration time.Duration) {
	m.OutboundCalls.WithLabelValues(dependency, outcome).Inc()
	m.OutboundDuration.WithLabelValues(dependency).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.OutboundCalls++
	if outcome != "success" {
		m.snapshot.OutboundFailures++
	}
	m.mu.Unlock()
}

// RecordRetry records a single retry attempt against a dependency
func (m *Metrics) RecordRetry(dependency string) {
	m.OutboundRetries.WithLabelValues(dependency).Inc()
}

// RecordBreakerRejection records a call rejected because the circuit was open
func (m *Metrics) RecordBreakerRejection(dependency string) {
	m.BreakerRejections.WithLabelValues(dependency).Inc()

	m.mu.Lock()
	m.snapshot.BreakerRejected++
	m.mu.Unlock()
}

// RecordBreakerTransition records a breaker state change
func (m *Metrics) RecordBreakerTransition(dependency, to string, stateValue float64) {
	m.BreakerTransitions.WithLabelValues(dependency, to).Inc()
	m.BreakerState.WithLabelValues(dependency).Set(stateValue)
}

// RecordValidation records a credential validation outcome
func (m *Metrics) RecordValidation(result string) {
	m.Validations.WithLabelValues(result).Inc()
}

// RecordCacheHit records a validation served from cache
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
	m.mu.Lock()
	m.snapshot.CacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss records a validation that missed the cache
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
	m.mu.Lock()
	m.snapshot.CacheMisses++
	m.mu.Unlock()
}

// RecordCacheEvictions records entries removed by a sweep or lazy expiry
func (m *Metrics) RecordCacheEvictions(count int) {
	m.CacheEvictions.Add(float64(count))
}

// RecordStaleServed records an expired identity served during an outage
func (m *Metrics) RecordStaleServed() {
	m.CacheStaleServed.Inc()
	m.mu.Lock()
	m.snapshot.StaleServed++
	m.mu.Unlock()
}

// SetCacheEntries sets the current cached identity count
func (m *Metrics) SetCacheEntries(count int) {
	m.CacheEntries.Set(float64(count))
}

// GetSnapshot returns current headline values for the JSON ops API
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap.requestCount > 0 {
		snap.AvgDurationMs = snap.totalDuration / float64(snap.requestCount) * 1000
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	m.Uptime.Set(snap.UptimeSeconds)
	return snap
}
