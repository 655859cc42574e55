package observability

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	dbConnectionPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connection_pool_stats",
			Help: "Database connection pool statistics (total, idle, acquired)",
		},
		[]string{"state"},
	)

	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "favorites_id_cache_hits_total",
			Help: "Total number of shared favorite id cache hits",
		},
	)
	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "favorites_id_cache_misses_total",
			Help: "Total number of shared favorite id cache misses",
		},
	)

	toggleOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favorites_toggle_outcomes_total",
			Help: "Toggle results by outcome kind",
		},
		[]string{"outcome"},
	)
	toggleLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "favorites_toggle_duration_seconds",
			Help:    "Time from toggle request to settled outcome",
			Buckets: prometheus.DefBuckets,
		},
	)
	togglesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "favorites_toggles_in_flight",
			Help: "Toggle requests waiting for a settled outcome",
		},
	)

	storeOps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "favorites_store_operation_duration_seconds",
			Help:    "Latency of favorite store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "result"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(httpRequestLatency)
	prometheus.MustRegister(dbConnectionPoolStats)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
	prometheus.MustRegister(toggleOutcomes)
	prometheus.MustRegister(toggleLatency)
	prometheus.MustRegister(togglesInFlight)
	prometheus.MustRegister(storeOps)
}

// Middleware records HTTP request latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriterSpy{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		httpRequestLatency.WithLabelValues(r.Method, r.Pattern, fmt.Sprint(ww.code)).Observe(duration)
	})
}

type responseWriterSpy struct {
	http.ResponseWriter
	code int
}

func (w *responseWriterSpy) WriteHeader(statusCode int) {
	w.code = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps streaming responses working behind the spy.
func (w *responseWriterSpy) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// PoolStats reports total, idle and acquired connections.
type PoolStats func() (total, idle, acquired int)

func PgxPoolStats(pool *pgxpool.Pool) PoolStats {
	return func() (int, int, int) {
		s := pool.Stat()
		return int(s.TotalConns()), int(s.IdleConns()), int(s.AcquiredConns())
	}
}

func SQLDBStats(db *sql.DB) PoolStats {
	return func() (int, int, int) {
		s := db.Stats()
		return s.OpenConnections, s.Idle, s.InUse
	}
}

// StartDBStatsCollector polls pool stats every interval until ctx is done.
func StartDBStatsCollector(ctx context.Context, stats PoolStats, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			total, idle, acquired := stats()
			dbConnectionPoolStats.WithLabelValues("total").Set(float64(total))
			dbConnectionPoolStats.WithLabelValues("idle").Set(float64(idle))
			dbConnectionPoolStats.WithLabelValues("acquired").Set(float64(acquired))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
