package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/leonidas-directory/internal/metrics"
	"github.com/prn-tf/leonidas-directory/internal/repository"
)

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	UserHandler *UserHandler
	Metrics     *metrics.Metrics
	Cache       repository.Cache
	RateLimit   int // requests per minute per client, 0 disables
	Health      repository.DatabaseHealth
	Logger      zerolog.Logger
}

// NewRouter builds the API router with the full middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	if cfg.RateLimit > 0 && cfg.Cache != nil {
		r.Use(RateLimiter(cfg.Cache, cfg.RateLimit, cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.Health))

	cfg.UserHandler.RegisterRoutes(r)

	return r
}

// healthHandler reports liveness, including store reachability when a
// health checker is wired in.
func healthHandler(db repository.DatabaseHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		writeSuccess(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
