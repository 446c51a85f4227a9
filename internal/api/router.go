package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires all endpoints onto a chi router with the global
// middleware stack.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/actions", func(r chi.Router) {
			r.Get("/", h.listActions)
			r.Post("/", h.defineAction)
			r.Post("/save", h.saveAction)
		})

		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", h.listDatasets)
			r.Post("/", h.registerDataset)
		})

		r.Get("/sessions/{sessionID}/messages", h.sessionMessages)

		r.Post("/turns", h.submitTurn)
		r.Post("/questions/select", h.selectQuestion)
		r.Post("/elaborate", h.elaborate)

		r.Post("/copilot/query", h.copilotQuery)

		r.Route("/action-items", func(r chi.Router) {
			r.Post("/", h.createActionItem)
			r.Post("/extract", h.extractActionItems)
		})

		r.Post("/dispatch", h.dispatch)
	})

	return r
}
