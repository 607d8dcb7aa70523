package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	analysisH *AnalysisHandler,
	imageH *ImageHandler,
	healthH *HealthHandler,
	index http.Handler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	// Unauthenticated routes
	r.Get("/health", healthH.Health)
	r.Method(http.MethodGet, "/", index)
	r.Route("/images", func(r chi.Router) {
		r.Get("/", imageH.List)
		r.Get("/{filename}", imageH.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Post("/upload", analysisH.Upload)
		r.Post("/ask", analysisH.Ask)
		r.Get("/example", analysisH.Example)
	})

	return r
}
