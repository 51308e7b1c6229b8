package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const (
	routeLabelKey   ctxKey = "metrics_route"
	requestIDCtxKey ctxKey = "metrics_request_id"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispo_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispo_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispo_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispo_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	eventsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispo_events_written_total",
		Help: "Events persisted through full-list replacement.",
	})

	eventsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispo_events_expired_total",
		Help: "Stored events removed by the retention sweep.",
	})

	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispo_validation_failures_total",
		Help: "Rejected event list submissions by failing field.",
	}, []string{"field"})

	readFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispo_read_fallbacks_total",
		Help: "Event list reads answered with an empty list because the store failed.",
	})
)

// Middleware records request metrics and enriches the context with labels for downstream instrumentation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())

			// The route pattern is only complete once chi has matched; use a
			// mutable holder so store latency observed downstream gets the label.
			label := &routeLabel{value: r.URL.Path}
			ctx := context.WithValue(r.Context(), routeLabelKey, label)
			if reqID != "" {
				ctx = context.WithValue(ctx, requestIDCtxKey, reqID)
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			r = r.WithContext(ctx)
			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := ww.Status()
			method := r.Method
			duration := time.Since(start).Seconds()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(method, route).Inc()
			httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(method, route, statusCode).Inc()
			}
		})
	}
}

// RouteLabeler stores the matched chi route pattern for store latency labels.
// Mount it inside the router, after routing has happened.
func RouteLabeler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeLabelKey).(*routeLabel); ok {
			label.value = routePattern(r)
		}
		next.ServeHTTP(w, r)
	})
}

type routeLabel struct {
	value string
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBLatency records database latency for a given operation, associating it with request labels when available.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	route := routeFromContext(ctx)
	dbLatency.WithLabelValues(operation, route).Observe(time.Since(start).Seconds())
}

// EventsWritten counts rows handed to the store by a successful replacement.
func EventsWritten(n int) {
	eventsWritten.Add(float64(n))
}

// EventsExpired counts rows removed by the retention sweep.
func EventsExpired(n int64) {
	if n > 0 {
		eventsExpired.Add(float64(n))
	}
}

// ValidationFailure counts a rejected submission.
func ValidationFailure(field string) {
	validationFailures.WithLabelValues(field).Inc()
}

// ReadFallback counts a masked read failure.
func ReadFallback() {
	readFallbacks.Inc()
}

// RequestIDFromContext extracts the request ID stored by the metrics middleware.
func RequestIDFromContext(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return reqID
	}
	return ""
}

func routeFromContext(ctx context.Context) string {
	if label, ok := ctx.Value(routeLabelKey).(*routeLabel); ok && label.value != "" {
		return label.value
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
