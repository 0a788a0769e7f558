package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isstracker_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	feedFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_feed_fetches_total",
			Help: "Upstream feed fetches by feed and result.",
		},
		[]string{"feed", "result"},
	)

	feedFetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isstracker_feed_fetch_duration_seconds",
			Help:    "Upstream feed fetch duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"feed"},
	)

	recordsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_records_skipped_total",
		Help: "State vector records dropped because a field failed to parse.",
	})

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_cache_hits_total",
		Help: "Trajectory cache reads served from the store.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_cache_misses_total",
		Help: "Trajectory cache reads that fell through to the feed.",
	})

	datasetStateVectors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstracker_dataset_state_vectors",
		Help: "Number of state vectors in the most recently stored dataset.",
	})

	datasetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstracker_dataset_age_seconds",
		Help: "Seconds since the cached dataset was fetched.",
	})

	geocodeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_geocode_failures_total",
		Help: "Reverse geocoding lookups that fell back to the placeholder.",
	})

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_stream_connections_total",
			Help: "SSE connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstracker_streams_active",
		Help: "Currently open SSE streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_stream_messages_total",
		Help: "SSE data messages sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_stream_bytes_total",
		Help: "SSE bytes written.",
	})

	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_auth_failures_total",
			Help: "Rejected requests to protected routes by reason.",
		},
		[]string{"reason"},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_stream_errors_total",
			Help: "SSE errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		feedFetchesTotal,
		feedFetchDurationSeconds,
		recordsSkippedTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		datasetStateVectors,
		datasetAgeSeconds,
		geocodeFailuresTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		authFailuresTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFeedFetch records the outcome and duration of one upstream fetch.
func ObserveFeedFetch(feed string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	feedFetchesTotal.WithLabelValues(feed, result).Inc()
	feedFetchDurationSeconds.WithLabelValues(feed).Observe(d.Seconds())
}

func IncRecordsSkipped() { recordsSkippedTotal.Inc() }

func IncCacheHits() { cacheHitsTotal.Inc() }

func IncCacheMisses() { cacheMissesTotal.Inc() }

// SetDataset publishes the size of the most recently stored dataset.
func SetDataset(stateVectors int) {
	datasetStateVectors.Set(float64(stateVectors))
}

func SetDatasetAge(seconds float64) { datasetAgeSeconds.Set(seconds) }

func IncGeocodeFailures() { geocodeFailuresTotal.Inc() }

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

func IncStreamsActive() { streamsActive.Inc() }

func DecStreamsActive() { streamsActive.Dec() }

func IncStreamMessages() { streamMessagesTotal.Inc() }

func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

func IncAuthFailures(reason string) { authFailuresTotal.WithLabelValues(reason).Inc() }

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/healthz":        true,
	"/readyz":         true,
	"/metrics":        true,
	"/epochs":         true,
	"/epochs/closest": true,
	"/now":            true,
	"/refresh":        true,
	"/stream/closest": true,
}

// normalizeRoute collapses per-epoch paths to their route pattern so each
// epoch string does not create a new label value. Unknown paths map to "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	rest, ok := strings.CutPrefix(path, "/epochs/")
	if !ok || rest == "" {
		return "other"
	}
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1:
		return "/epochs/{epoch}"
	case len(parts) == 2 && parts[1] == "speed":
		return "/epochs/{epoch}/speed"
	case len(parts) == 2 && parts[1] == "location":
		return "/epochs/{epoch}/location"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
