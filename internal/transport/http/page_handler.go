package http

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "markscope/internal/errors"
)

// PageHandler serves the navigable HTML chart pages
type PageHandler struct {
	service      ChartServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewPageHandler creates a new page handler
func NewPageHandler(service ChartServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PageHandler {
	return &PageHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "page_handler")),
		errorHandler: errorHandler,
	}
}

// Routes registers / and /p{n} on r
func (h *PageHandler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/p{n:[0-9]+}", h.Page)
}

// Index loads the snapshot and redirects to the first page
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "snapshot ready",
		slog.String("digest", info.Digest),
		slog.Int("assignments", info.Assignments))
	http.Redirect(w, r, "/p1", http.StatusSeeOther)
}

// Page handles GET /p{n}
func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.WritePage(r.Context(), &buf, chi.URLParam(r, "n")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write page", slog.String("error", err.Error()))
	}
}
