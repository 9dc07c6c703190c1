package api

import (
	"net/http"

	"github.com/asisten-gizi/server/internal/auth"
	"github.com/asisten-gizi/server/internal/monitoring"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterOptions struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics // optional
	Auth    *auth.Authenticator // optional; nil leaves the API open
}

func NewRouter(apiHandler *APIHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger.Named("http")))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	routes := func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		r.Group(func(r chi.Router) {
			if opts.Auth != nil {
				r.Use(opts.Auth.Middleware(writeDetail))
			}
			r.Post("/ask", apiHandler.AskHandler)
			r.Post("/generate-diet", apiHandler.GenerateDietHandler)
		})
	}

	r.Route("/api", routes)
	// Existing clients call the root paths.
	r.Group(routes)

	return r
}
