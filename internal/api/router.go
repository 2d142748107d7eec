package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-remote/internal/infrastructure/metrics"
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
	if s.httpMetrics != nil {
		r.Use(s.httpMetrics.Middleware)
	}

	// Prometheus scrape endpoint
	if s.registry != nil {
		r.Handle("/metrics", metrics.Handler(s.registry))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/scan", s.handleScanDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)

				r.Post("/pair/start", s.handleStartPairing)
				r.Post("/pair/finish", s.handleFinishPairing)
				r.Delete("/pair", s.handleCancelPairing)

				r.Post("/remote/{command}", s.handleRemoteCommand)
				r.Get("/now_playing", s.handleNowPlaying)

				r.Get("/apps", s.handleListApps)
				r.Post("/apps/{app_id}/launch", s.handleLaunchApp)

				r.Post("/connect", s.handleConnect)
				r.Post("/disconnect", s.handleDisconnect)
			})
		})

		r.Get("/remote/commands", s.handleListCommands)
		r.Get("/audit", s.handleListAuditLogs)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns session counts and the service version.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.sessions.Health()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             h.Status,
		"discovered_devices": h.DiscoveredDevices,
		"active_connections": h.ActiveConnections,
		"pairing_sessions":   h.PairingSessions,
		"version":            s.version,
	})
}
