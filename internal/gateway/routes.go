package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return withMiddleware(next, s.log, s.cfg.AllowedOrigins)
	})

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/rpc", s.handleRPC)
		r.Get("/ws", s.handleWebSocket)
		r.Route("/api", func(r chi.Router) {
			r.Get("/sessions", s.handleListSessions)
			r.Get("/sessions/{sessionID}/interactions", s.handleListInteractions)
			r.Get("/interactions/{witnessID}", s.handleGetInteraction)
		})
	})

	// Catch-all for unknown routes
	r.NotFound(handleNotFound)
	return r
}
