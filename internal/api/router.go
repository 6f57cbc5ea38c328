package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter mounts the REST routes and the websocket endpoint.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID, s.accessLog, limitBody)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/pins", func(r chi.Router) {
		r.Get("/", s.handleListPins)

		r.Route("/{pin}", func(r chi.Router) {
			r.Get("/", s.handleGetPin)
			r.Post("/state", s.handleReportState)
			r.Get("/history", s.handlePinHistory)
		})
	})

	r.Get(s.wsCfg.Path, s.handleWebSocket)

	return r
}

// handleHealth reports liveness plus a summary of the runtime.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	attached := s.handler != nil
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"pins":       len(s.runtime.Snapshot()),
		"attached":   attached,
		"emulated":   s.runtime.Emulated(),
		"broadcom":   s.runtime.IsBroadcomScheme(),
		"ws_clients": s.hub.ClientCount(),
	})
}
