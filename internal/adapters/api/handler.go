// Package api is the HTTP route layer. It authenticates callers, gates each
// route by role and translates service errors into status codes.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ecoindex/internal/auth"
	"ecoindex/internal/records"
)

// Prefix is the mount point of every versioned route.
const Prefix = "/api/v1"

// Config wires the handler to its services. Occurrence, MCI and Users are
// required.
type Config struct {
	Occurrence *records.Service
	MCI        *records.Service
	Users      *auth.Service

	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// Observer receives per-request measurements.
	Observer RequestObserver
	// Health reports whether the backing store is reachable.
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

// Handler serves the ecoindex REST API.
type Handler struct {
	cfg    Config
	logger *slog.Logger
	router chi.Router
}

// NewHandler builds the router for cfg.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{cfg: cfg, logger: logger}
	h.router = h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(instrument(h.logger, h.cfg.Observer))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", h.handleHealth)
	if h.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.cfg.Metrics)
	}

	r.Route(Prefix, func(r chi.Router) {
		r.Route("/occurrence", h.recordRoutes(h.cfg.Occurrence))
		r.Route("/mci", h.recordRoutes(h.cfg.MCI))
		r.Route("/users", h.userRoutes)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Health != nil {
		if err := h.cfg.Health(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
