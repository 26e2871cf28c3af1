package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade authenticates with a single-use ticket
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Event intake for collaborators that speak HTTP rather
			// than holding a WebSocket open.
			r.Post("/events", s.handleEvent)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Post("/restart", s.handleRestartSession)
			})

			r.Get("/users/active", s.handleActiveUsers)

			r.Route("/targets", func(r chi.Router) {
				r.Get("/", s.handleListSnapshots)
				r.Get("/{target}/snapshot", s.handleGetSnapshot)
			})

			r.Get("/devices", s.handleListDevices)
			r.Get("/stats", s.handleStats)
		})
	})

	return r
}
