// Package metrics exposes prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildInfo carries the build identity as labels.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pulse",
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "commit", "date"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served",
	})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pulse",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	storeQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pulse",
		Subsystem: "store",
		Name:      "query_duration_seconds",
		Help:      "Snapshot/roster store query latency",
		Buckets:   prometheus.DefBuckets,
	})

	storeQueryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "store",
		Name:      "query_errors_total",
		Help:      "Snapshot/roster store query errors",
	})

	overviewCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "overview_cache",
		Name:      "requests_total",
		Help:      "Overview cache lookups by result",
	}, []string{"result"})
)

// RecordStoreQuery records one store round trip.
func RecordStoreQuery(duration time.Duration, err error) {
	storeQueryDuration.Observe(duration.Seconds())
	if err != nil {
		storeQueryErrors.Inc()
	}
}

// RecordOverviewCache records a cache hit or miss for the today
// overview endpoint.
func RecordOverviewCache(hit bool) {
	if hit {
		overviewCacheHits.WithLabelValues("hit").Inc()
	} else {
		overviewCacheHits.WithLabelValues("miss").Inc()
	}
}

// Middleware instruments every request with in-flight and duration
// metrics, labeled by the chi route pattern rather than the raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
