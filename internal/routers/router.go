package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Audatic07/collab-notes/internal/api"
	"github.com/Audatic07/collab-notes/internal/config"
	"github.com/Audatic07/collab-notes/internal/metrics"
)

const serviceName = "collab-notes"

func New(h *api.Handlers, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: !cfg.AllowsAnyOrigin(),
	}))
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(metrics.Middleware(serviceName))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	// Websocket connections are long-lived and must not inherit the request timeout.
	r.Get("/ws", h.CollabWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/healthz", h.Health)
		r.Get("/notes/{id}/presence", h.NotePresence)
	})

	return r
}
