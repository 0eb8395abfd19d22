// Package metrics provides Prometheus instrumentation for the Vaultbreak platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaultbreak",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vaultbreak",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AttacksTotal counts settled attack sessions by result (breach, repelled).
	AttacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaultbreak",
			Name:      "attacks_total",
			Help:      "Total settled attack sessions by result.",
		},
		[]string{"result"},
	)

	// DefenseEventsTotal counts simulated defense events by result.
	DefenseEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaultbreak",
			Name:      "defense_events_total",
			Help:      "Total simulated defense events by result.",
		},
		[]string{"result"},
	)

	// LootTokensTotal accumulates tokens paid out as loot to attackers.
	LootTokensTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultbreak",
		Name:      "loot_tokens_total",
		Help:      "Total tokens paid out as loot.",
	})

	// ActiveSessions tracks attack sessions currently in progress.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultbreak",
		Name:      "active_attack_sessions",
		Help:      "Number of attack sessions currently in progress.",
	})

	// FeedRefreshesTotal counts matchmaking feed refreshes.
	FeedRefreshesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultbreak",
		Name:      "matchmaking_feed_refreshes_total",
		Help:      "Total matchmaking feed refreshes.",
	})

	// InsuranceClaimsTotal counts insurance claims by outcome (paid, denied).
	InsuranceClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaultbreak",
			Name:      "insurance_claims_total",
			Help:      "Total insurance claims by outcome.",
		},
		[]string{"outcome"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vaultbreak",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultbreak", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultbreak", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultbreak", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultbreak", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultbreak", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultbreak", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AttacksTotal,
		DefenseEventsTotal,
		LootTokensTotal,
		ActiveSessions,
		FeedRefreshesTotal,
		InsuranceClaimsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
