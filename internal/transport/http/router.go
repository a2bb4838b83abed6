package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"licensegate/internal/handler"
	reqmw "licensegate/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	TokenHandler  *handler.TokenHandler
	HealthHandler *handler.HealthHandler
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(reqmw.RequestLogger)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/healthz", cfg.HealthHandler.Check)

	r.Route("/api/token", func(r chi.Router) {
		r.Get("/", cfg.TokenHandler.Bind)
		r.Get("/status", cfg.TokenHandler.Status)
		r.Post("/add", cfg.TokenHandler.Create)
		r.Post("/updateMaxUsers", cfg.TokenHandler.UpdateMaxUsers)
		r.Post("/updateAll", cfg.TokenHandler.UpdateAll)
		r.Post("/update-video-info", cfg.TokenHandler.UpdateVideoInfo)
	})

	return r
}
