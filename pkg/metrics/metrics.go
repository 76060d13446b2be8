package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Market-data fetch metrics
	FetchCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticker_fetch_total",
			Help: "Total market-data requests issued",
		})
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticker_fetch_errors_total",
			Help: "Market-data fetch failures by reason",
		},
		[]string{"reason"},
	)
	FetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticker_fetch_latency_seconds",
			Help:    "Time to fetch and parse one snapshot set",
			Buckets: prometheus.DefBuckets,
		})

	// Cache/coordination metrics
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticker_cache_hits_total",
			Help: "Requests served from the in-process snapshot cache",
		})
	SharedCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticker_shared_cache_hits_total",
			Help: "Requests served from the shared snapshot store",
		})
	DedupedFetches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticker_deduped_fetches_total",
			Help: "Callers that joined an in-flight fetch instead of issuing one",
		})
	BroadcastCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticker_broadcasts_total",
			Help: "Broadcast events published",
		},
		[]string{"event"},
	)
	BroadcastDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticker_broadcasts_dropped_total",
			Help: "Events dropped because a subscriber was not keeping up",
		})
	ActiveWidgets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticker_active_widgets",
			Help: "Number of attached widget instances",
		})

	// Render metrics
	RenderCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticker_renders_total",
			Help: "Widget renders by outcome",
		},
		[]string{"outcome"},
	)

	// API metrics
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	APIRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "system_active_connections",
			Help: "Number of open websocket connections",
		})

	// Redis metrics
	RedisOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
	RedisErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total Redis errors",
		},
		[]string{"operation"},
	)
	RedisCircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "redis_circuit_breaker_state",
			Help: "0 closed, 1 open, 2 half-open",
		})
)

func init() {
	// MustRegister panics if registration fails (e.g. duplicate)
	prometheus.MustRegister(
		FetchCounter, FetchErrors, FetchLatency,
		CacheHits, SharedCacheHits, DedupedFetches,
		BroadcastCounter, BroadcastDropped, ActiveWidgets,
		RenderCounter,
		APIRequestDuration, APIRequestTotal, ActiveConnections,
		RedisOperationDuration, RedisErrors, RedisCircuitState,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
