package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmritesh/Refari-Notifier/internal/api/middleware"
	"github.com/dmritesh/Refari-Notifier/internal/api/organizations"
)

const maxRecentEvents = 200

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)

	orgHandler := organizations.NewHandler(s.storage, s.oauth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", orgHandler.List)
			r.Post("/", orgHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", orgHandler.GetByID)
				r.Put("/", orgHandler.Update)
				r.Delete("/", orgHandler.Delete)
				r.Post("/pause", orgHandler.Pause)
				r.Post("/resume", orgHandler.Resume)
				r.Get("/hubstaff/connect", orgHandler.Connect)
			})
		})

		r.Get("/hubstaff/callback", orgHandler.Callback)
		r.Get("/events", s.listEvents)
	})

	// Health endpoints (public)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/ready", s.healthHandler.Ready)

	return r
}

// listEvents returns the newest ledger entries for troubleshooting
// which activities produced announcements.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			JSONError(w, NewBadRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > maxRecentEvents {
		limit = maxRecentEvents
	}

	events, err := s.storage.Events().ListRecent(r.Context(), limit)
	if err != nil {
		log.Printf("failed to list events: %v", err)
		JSONError(w, ErrInternalServer)
		return
	}
	OK(w, events)
}
