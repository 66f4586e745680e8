package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the HTTP surface. No global timeout middleware: both
// the scrape endpoint and the progress stream legitimately outlive any
// reasonable per-request deadline.
func NewRouter(h *Handlers, imagesDir, imagesWebPrefix string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Post("/scrape", h.Scrape)
	r.Get("/progresso/{taskID}", h.StreamProgress)

	// Scraped images are served from disk under the same prefix their
	// persisted paths use, so result consumers can resolve them directly.
	r.Handle(imagesWebPrefix+"/*", http.StripPrefix(imagesWebPrefix+"/",
		http.FileServer(http.Dir(imagesDir))))

	return r
}
