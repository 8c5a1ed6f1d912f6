package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/linguahub/signaling/config"
	"github.com/linguahub/signaling/internal/metrics"
)

// New builds the HTTP surface of the service: the websocket signaling
// endpoint plus the operational endpoints.
func New(cfg *config.Config, logger *slog.Logger, wsHandler http.Handler) http.Handler {
	limiter := NewIPRateLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", HealthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.With(RateLimitMiddleware(limiter)).Get("/ws", wsHandler.ServeHTTP)

	return r
}

// HealthHandler reports that the process is up. It carries no information
// about room state.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("server is running"))
}
