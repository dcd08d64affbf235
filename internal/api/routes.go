// Package api exposes the controller's read-only status surface: live
// tracks, in-flight radio sessions, the call log and process health.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/co-gci/internal/session"
	"github.com/yegors/co-gci/internal/storage/sqlite"
	"github.com/yegors/co-gci/internal/telemetry"
	"github.com/yegors/co-gci/internal/tracks"
	"github.com/yegors/co-gci/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(store *tracks.Store, ingest *telemetry.Service, dispatcher *session.Dispatcher, calls *sqlite.CallStorage, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(store, ingest, dispatcher, calls, log),
		middleware: NewMiddleware(log),
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Track routes
		router.Get("/tracks", r.handler.GetAllTracks)
		router.Get("/tracks/{id}", r.handler.GetTrackByID)

		// Session routes
		router.Get("/sessions", r.handler.GetSessions)

		// Call log routes
		router.Get("/calls", r.handler.GetRecentCalls)
		router.Get("/calls/pilot/{pilot}", r.handler.GetCallsByPilot)

		// Health check
		router.Get("/health", r.handler.GetHealth)
	})

	return router
}
