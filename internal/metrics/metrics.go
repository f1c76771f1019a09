// Package metrics provides Prometheus metrics for the mediadrive server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadrive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Streaming metrics
	streamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediadrive_stream_bytes_total",
			Help: "Total bytes relayed through the stream endpoint",
		},
	)

	streamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrive_stream_requests_total",
			Help: "Total stream requests",
		},
		[]string{"kind", "status"},
	)

	// Upstream Graph API metrics
	graphRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrive_graph_requests_total",
			Help: "Total Microsoft Graph API requests",
		},
		[]string{"operation", "status"},
	)

	graphRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadrive_graph_request_duration_seconds",
			Help:    "Microsoft Graph API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	itemCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrive_item_cache_lookups_total",
			Help: "Item metadata cache lookups",
		},
		[]string{"result"},
	)

	// Auth metrics
	authCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadrive_auth_callbacks_total",
			Help: "OAuth callback outcomes",
		},
		[]string{"result"},
	)

	// Watch history metrics
	watchHistoryAppendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediadrive_watch_history_appends_total",
			Help: "Total watch history entries appended",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadrive_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStream records a stream response. kind is "range" or "full".
func RecordStream(kind string, bytes int64, success bool) {
	streamBytesTotal.Add(float64(bytes))
	status := "success"
	if !success {
		status = "error"
	}
	streamRequestsTotal.WithLabelValues(kind, status).Inc()
}

// RecordGraphRequest records an upstream Graph API call.
func RecordGraphRequest(operation string, statusCode int, duration time.Duration) {
	graphRequestsTotal.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	graphRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordItemCacheLookup records an item cache hit or miss.
func RecordItemCacheLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	itemCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordAuthCallback records an OAuth callback outcome
// ("success", "missing_code", "bad_state", "exchange_failed", "no_access_token").
func RecordAuthCallback(result string) {
	authCallbacksTotal.WithLabelValues(result).Inc()
}

// RecordWatchHistoryAppend records a watch history append.
func RecordWatchHistoryAppend() {
	watchHistoryAppendsTotal.Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
