// Package api provides the habitforge HTTP server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/habitforge/habitforge/internal/app/tracker"
	"github.com/habitforge/habitforge/internal/domain"
	"github.com/habitforge/habitforge/internal/health"
	"github.com/habitforge/habitforge/internal/logger"
)

// Server is the habitforge HTTP API server.
type Server struct {
	tracker        *tracker.Tracker
	health         *health.Checker // nil: /health reports ok unconditionally
	hub            *BadgeHub
	corsOrigins    []string
	metricsEnabled bool
	version        string
}

// NewServer creates a new API server. The badge hub is registered as a
// tracker sink.
func NewServer(t *tracker.Tracker) *Server {
	hub := NewBadgeHub()
	t.AddSink(hub)
	return &Server{tracker: t, hub: hub, version: "dev"}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches a health checker to /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetCORSOrigins restricts allowed origins. Empty or "*" allows any.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// SetVersion sets the version reported by /api/status, next to the
// tracker's runtime counters.
func (s *Server) SetVersion(v string) { s.version = v }

// BadgeHub returns the live badge hub.
func (s *Server) BadgeHub() *BadgeHub { return s.hub }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)

	// The stream is long-lived; keep it outside the request timeout.
	r.Get("/api/badges/stream", s.hub.HandleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":  "habitforge is running",
				"version": s.version,
				"runtime": s.tracker.Stats(),
			})
		})

		r.Route("/api/habits", func(r chi.Router) {
			r.Get("/", s.handleListHabits)
			r.Post("/", s.handleCreateHabit)
			r.Post("/apply", s.handleApplyHabitfile)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetHabit)
				r.Post("/pause", s.handleSetEnabled(false))
				r.Post("/resume", s.handleSetEnabled(true))
				r.Post("/recompute", s.handleRecompute)
				r.Get("/completions", s.handleHabitCompletions)
				r.Post("/completions", s.handleComplete)
			})
		})

		r.Route("/api/completions", func(r chi.Router) {
			r.Get("/", s.handleCompletionsInRange)
			r.Patch("/{id}", s.handleUpdateCompletion)
			r.Delete("/{id}", s.handleDeleteCompletion)
		})

		r.Get("/api/badges", s.handleBadges)
		r.Get("/api/level", s.handleLevel)
		r.Get("/api/summary", s.handleSummary)
		r.Get("/api/notifications", s.handleNotifications)
		r.Post("/api/notifications/{id}/shown", s.handleNotificationShown)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeTypedError(w, status, msg, "error")
}

func writeTypedError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    kind,
		},
	})
}

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrHabitNotFound),
		errors.Is(err, domain.ErrCompletionNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		writeTypedError(w, http.StatusNotFound, err.Error(), "not_found")
	case domain.IsValidation(err):
		writeTypedError(w, http.StatusBadRequest, err.Error(), "invalid_request")
	default:
		logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeTypedError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if len(s.corsOrigins) == 0 {
		return "*"
	}
	for _, o := range s.corsOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
