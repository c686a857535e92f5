package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/voicebook/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/voicebook/internal/http/middleware"
	"github.com/wolfman30/voicebook/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Tools          *handlers.ToolHandler
	ToolSecret     string
	MetricsHandler http.Handler
	HealthCheck    http.HandlerFunc
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		if cfg.HealthCheck != nil {
			public.Get("/health", cfg.HealthCheck)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Webhook tools, shared-secret gated. The voice platform is the only
	// caller of these.
	if cfg.Tools != nil {
		r.Route("/tools", func(tools chi.Router) {
			tools.Use(httpmiddleware.ToolSecret(cfg.ToolSecret))
			tools.Post("/availability", cfg.Tools.HandleAvailability)
			tools.Post("/book", cfg.Tools.HandleBook)
			tools.Post("/package-availability", cfg.Tools.HandlePackageAvailability)
			tools.Post("/package-book", cfg.Tools.HandlePackageBook)
			tools.Post("/cancel", cfg.Tools.HandleCancel)
			tools.Post("/reschedule", cfg.Tools.HandleReschedule)
		})
	}

	return r
}
