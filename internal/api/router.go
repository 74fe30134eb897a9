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

	// Edge sync protocol. Every route is HMAC-authenticated; the signed
	// path excludes this mount prefix.
	r.Route(s.edgeCfg.MountPrefix, func(r chi.Router) {
		r.Use(s.edgeAuthMiddleware)

		r.Post("/heartbeat", s.handleHeartbeat)
		r.Post("/devices/register", s.handleRegisterDevices)
		r.Post("/devices/entities/register", s.handleRegisterEntities)
		r.Post("/devices/purge", s.handlePurgeDevices)
		r.Post("/sensors/latest", s.handleSensorsLatest)
		r.Get("/commands", s.handlePollCommands)
		r.Post("/commands/ack", s.handleAckCommand)
	})

	// User-facing API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Health check and login (no auth required)
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket authenticates in the handler: browsers cannot set
		// Authorization headers on upgrade requests, so the token
		// arrives as a query parameter instead.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/sensors", s.handleDeviceSensors)
					r.Post("/command", s.handleDeviceCommand)
				})
			})

			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", s.handleListRooms)
				r.Post("/", s.handleCreateRoom)
				r.Patch("/{id}", s.handleRenameRoom)
				r.Delete("/{id}", s.handleDeleteRoom)
			})

			r.Route("/floors", func(r chi.Router) {
				r.Post("/", s.handleCreateFloor)
				r.Patch("/{id}", s.handleRenameFloor)
				r.Delete("/{id}", s.handleDeleteFloor)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
