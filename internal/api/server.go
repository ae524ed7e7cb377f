// Package api exposes the price optimizer over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/pricer/internal/scenario"
	"github.com/sells-group/pricer/internal/store"
)

// Config holds server-specific configuration.
type Config struct {
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// NewRouter wires the API routes. history may be nil, in which case the
// history routes answer 404.
func NewRouter(cfg Config, engine *scenario.Engine, history store.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	h := NewHandler(engine, history)

	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/config", h.Config)
		r.Get("/products/{name}/band", h.Band)
		r.Get("/bands", h.Bands)
		r.With(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)).Post("/predict", h.Predict)
		r.Get("/history", h.ListHistory)
		r.Get("/history/{id}", h.GetHistory)
	})

	return r
}
