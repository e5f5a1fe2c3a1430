package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Edge gateway metrics
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartsite",
			Subsystem: "edge_gateway",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smartsite",
			Subsystem: "edge_gateway",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Session cache
	SessionCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartsite",
			Subsystem: "session",
			Name:      "cache_hits_total",
			Help:      "Session cache hits",
		},
	)

	SessionCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartsite",
			Subsystem: "session",
			Name:      "cache_misses_total",
			Help:      "Session cache misses",
		},
	)

	SessionCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartsite",
			Subsystem: "session",
			Name:      "cache_evictions_total",
			Help:      "Session cache entries evicted by maintenance",
		},
	)

	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartsite",
			Subsystem: "session",
			Name:      "verifications_total",
			Help:      "Identity provider token verifications by outcome",
		},
		[]string{"outcome", "mode"},
	)

	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartsite",
			Subsystem: "session",
			Name:      "redirects_total",
			Help:      "Gateway redirects by target",
		},
		[]string{"target"},
	)

	// Chat client
	ChatEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartsite",
			Subsystem: "chat",
			Name:      "events_total",
			Help:      "Inbound chat events by kind",
		},
		[]string{"kind"},
	)

	ChatReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartsite",
			Subsystem: "chat",
			Name:      "reconnects_total",
			Help:      "Chat socket reconnect attempts",
		},
	)

	ChatConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "smartsite",
			Subsystem: "chat",
			Name:      "connection_state",
			Help:      "Chat socket connection state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=failed)",
		},
	)
)

// RecordRequest records a completed HTTP request.
func RecordRequest(method, endpoint, status string, seconds float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
