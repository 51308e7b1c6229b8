package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/dispo/internal/config"
	"github.com/jw6ventures/dispo/internal/events"
	"github.com/jw6ventures/dispo/internal/http/ratelimit"
	"github.com/jw6ventures/dispo/internal/metrics"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter wires the event API and operational endpoints. ctx bounds the
// lifetime of background helpers such as the rate limiter sweeper.
func NewRouter(ctx context.Context, cfg *config.Config, health HealthChecker, eventsHandler *events.Handler) http.Handler {
	r := chi.NewRouter()

	writeRateLimiter := ratelimit.NewIPRateLimiter(ctx, rate.Limit(cfg.WriteRateLimit), cfg.WriteRateBurst, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	eventRoutes := func(r chi.Router) {
		r.Use(metrics.RouteLabeler)
		r.Get("/", eventsHandler.List)
		r.With(writeRateLimiter.Middleware()).Post("/", eventsHandler.Replace)
	}
	r.Route("/events", eventRoutes)
	// Path used by the browser client.
	r.Route("/api/events", eventRoutes)

	return r
}
