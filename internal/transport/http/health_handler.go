package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"markscope/internal/services"
)

// HealthHandler serves the probes under /api/health and the version document.
type HealthHandler struct {
	service HealthServiceInterface
	logger  *slog.Logger
}

func NewHealthHandler(service HealthServiceInterface, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.probe(h.service.HealthCheck))
	r.Get("/ready", h.ReadinessCheck)
	r.Get("/live", h.probe(h.service.LivenessCheck))
	return r
}

// probe adapts a health check that always answers 200.
func (h *HealthHandler) probe(check func(context.Context) services.HealthStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, check(r.Context()))
	}
}

// ReadinessCheck answers 503 until the snapshot loads, so load balancers keep
// the instance out of rotation.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := h.service.ReadinessCheck(r.Context())
	if status.Status != "ready" {
		h.logger.WarnContext(r.Context(), "not ready", slog.String("status", status.Status))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// Version handles GET /api/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}
