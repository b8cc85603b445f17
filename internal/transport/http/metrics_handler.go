package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MetricsHandler exposes the Prometheus registry
type MetricsHandler struct {
	prometheus http.Handler
}

// NewMetricsHandler creates a new metrics handler. A nil handler serves 404.
func NewMetricsHandler(prometheus http.Handler) *MetricsHandler {
	if prometheus == nil {
		prometheus = http.NotFoundHandler()
	}
	return &MetricsHandler{prometheus: prometheus}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Handle("/", h.prometheus)
	return r
}
