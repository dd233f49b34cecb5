package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	providerRequests *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
	droppedSymbols   *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	cacheResults     *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		providerRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_provider_requests_total",
				Help: "Total number of upstream provider requests",
			},
			[]string{"provider", "operation"},
		),
		providerFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_provider_failures_total",
				Help: "Total number of provider failures by kind",
			},
			[]string{"provider", "kind"},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketfeed_circuit_breaker_state",
				Help: "Circuit breaker state per provider (0 closed, 1 open, 2 half-open)",
			},
			[]string{"provider"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketfeed_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		droppedSymbols: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_dropped_symbols_total",
				Help: "Symbols that could not be refreshed by any provider",
			},
			[]string{"provider"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketfeed_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		cacheResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketfeed_cache_requests_total",
				Help: "Cache lookups by namespace and result",
			},
			[]string{"namespace", "result"},
		),
	}
}

// RecordProviderRequest records one upstream call attempt.
func (r *Recorder) RecordProviderRequest(provider, op string) {
	r.providerRequests.WithLabelValues(provider, op).Inc()
}

// RecordProviderFailure records a classified provider failure.
func (r *Recorder) RecordProviderFailure(provider, kind string) {
	r.providerFailures.WithLabelValues(provider, kind).Inc()
}

// RecordBreakerState records the current breaker state for a provider.
func (r *Recorder) RecordBreakerState(provider string, state int) {
	r.breakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordDropped records symbols no provider could refresh.
func (r *Recorder) RecordDropped(provider string, count int) {
	r.droppedSymbols.WithLabelValues(provider).Add(float64(count))
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordCacheResult records a cache hit or miss.
func (r *Recorder) RecordCacheResult(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheResults.WithLabelValues(namespace, result).Inc()
}
