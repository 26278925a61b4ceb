package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carelink-health/medkb/internal/api"
	"github.com/carelink-health/medkb/internal/api/handlers"
	"github.com/carelink-health/medkb/internal/api/middleware"
)

type RouterConfig struct {
	// APIKey protects every route except /health. Empty disables auth.
	APIKey           string
	RetrievalHandler *handlers.RetrievalHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	IndexHandler     *handlers.IndexHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))

		r.Post("/retrieval/select", cfg.RetrievalHandler.Select)

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/", cfg.KnowledgeHandler.Ingest)
			r.Get("/", cfg.KnowledgeHandler.List)
			r.Delete("/{documentTitle}", cfg.KnowledgeHandler.Deactivate)
		})

		r.Route("/index", func(r chi.Router) {
			r.Post("/refresh", cfg.IndexHandler.Refresh)
			r.Get("/stats", cfg.IndexHandler.Stats)
			r.Get("/suggest", cfg.IndexHandler.Suggest)
		})
	})

	return r
}
