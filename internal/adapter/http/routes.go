package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteOptions carries the optional surfaces mounted next to the API.
type RouteOptions struct {
	// RateLimit wraps the endpoints that start generation. Nil disables it.
	RateLimit func(http.Handler) http.Handler
	// WebSocket serves /ws when set.
	WebSocket http.HandlerFunc
	// MCP serves /mcp when set.
	MCP http.Handler
}

// MountRoutes registers all routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	r.Get("/", h.Root)
	r.Get("/health", h.HandleHealth)

	if opts.WebSocket != nil {
		r.Get("/ws", opts.WebSocket)
	}
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Post("/upload", h.Upload)

		r.Group(func(r chi.Router) {
			if opts.RateLimit != nil {
				r.Use(opts.RateLimit)
			}
			r.Post("/process", h.Process)
			r.Post("/process/stream", h.ProcessStream)
		})

		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/runs/{id}/events", h.RunEvents)
		r.Get("/runs/{id}/chart.html", h.RunChart)
	})
}
