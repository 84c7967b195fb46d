package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paissadb_api_build_info",
			Help: "Build information of the PaissaDB API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paissadb_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paissadb_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paissadb_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Ingest metrics
	IngestObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paissadb_api_ingest_observations_total",
			Help: "Total number of ingested observations by admission outcome",
		},
		[]string{"outcome"}, // "validated", "dropped_future", "dropped_world_zero"
	)

	IngestEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paissadb_api_ingest_entries_total",
			Help: "Total number of normalized plot entries by queue outcome",
		},
		[]string{"outcome"}, // "queued", "deduplicated"
	)

	// Websocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paissadb_api_ws_connections",
			Help: "Number of clients connected to the websocket",
		},
	)

	WSMessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paissadb_api_ws_messages_sent_total",
			Help: "Total number of websocket messages delivered to viewers",
		},
		[]string{"type"}, // "plot_open", "plot_sold", "plot_update", "ping"
	)

	WSMessagesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paissadb_api_ws_messages_dropped_total",
			Help: "Total number of websocket messages dropped on slow viewers",
		},
	)

	// CSV dump metrics
	CSVDumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paissadb_api_csv_dumps_total",
			Help: "Total number of CSV dump requests by outcome",
		},
		[]string{"outcome"}, // "cache_hit", "built", "lock_busy"
	)

	CSVDumpBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paissadb_api_csv_dump_build_duration_seconds",
			Help:    "Duration of CSV dump rebuilds in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordIngestBatch records the admission outcomes of one ingest request.
func RecordIngestBatch(validated, droppedFuture, droppedWorldZero int) {
	if validated > 0 {
		IngestObservationsTotal.WithLabelValues("validated").Add(float64(validated))
	}
	if droppedFuture > 0 {
		IngestObservationsTotal.WithLabelValues("dropped_future").Add(float64(droppedFuture))
	}
	if droppedWorldZero > 0 {
		IngestObservationsTotal.WithLabelValues("dropped_world_zero").Add(float64(droppedWorldZero))
	}
}

// RecordIngestEntries records how many normalized entries were freshly
// queued versus collapsed onto an already-queued key.
func RecordIngestEntries(queued, deduplicated int) {
	if queued > 0 {
		IngestEntriesTotal.WithLabelValues("queued").Add(float64(queued))
	}
	if deduplicated > 0 {
		IngestEntriesTotal.WithLabelValues("deduplicated").Add(float64(deduplicated))
	}
}
