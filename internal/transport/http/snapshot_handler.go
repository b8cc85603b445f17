package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "markscope/internal/errors"
)

// SnapshotHandler reports on and reloads the loaded source data
type SnapshotHandler struct {
	service      ChartServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(service ChartServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SnapshotHandler {
	return &SnapshotHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "snapshot_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the snapshot routes, mounted under /api/snapshot
func (h *SnapshotHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Info)
	r.Post("/reload", h.Reload)
	return r
}

// Info handles GET /api/snapshot
func (h *SnapshotHandler) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// Reload handles POST /api/snapshot/reload
func (h *SnapshotHandler) Reload(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Reload(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "snapshot reload requested",
		slog.String("digest", info.Digest),
		slog.String("remote_addr", r.RemoteAddr))
	render.JSON(w, r, info)
}
