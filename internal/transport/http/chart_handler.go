package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "markscope/internal/errors"
	rendering "markscope/internal/render"
)

// ImageQuery holds the query parameters of an image request
type ImageQuery struct {
	Format string `query:"format" validate:"omitempty,imageformat"`
	Width  int    `query:"width" validate:"omitempty,min=100,max=4096"`
	Height int    `query:"height" validate:"omitempty,min=100,max=4096"`
}

// ChartHandler serves assembled charts as JSON and rendered images
type ChartHandler struct {
	service      ChartServiceInterface
	validator    StructValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewChartHandler creates a new chart handler
func NewChartHandler(service ChartServiceInterface, validator StructValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ChartHandler {
	return &ChartHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "chart_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the chart routes, mounted under /api/charts
func (h *ChartHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListPages)
	r.Route("/{page}", func(r chi.Router) {
		r.Get("/", h.GetChart)
		r.Get("/image", h.GetImage)
	})

	return r
}

// ListPages handles GET /api/pages
func (h *ChartHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Pages())
}

// GetChart handles GET /api/charts/{page}
func (h *ChartHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	chart, etag, err := h.service.Chart(r.Context(), chi.URLParam(r, "page"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if matchesETag(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	render.JSON(w, r, chart)
}

// GetImage handles GET /api/charts/{page}/image
func (h *ChartHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	q, err := parseImageQuery(r)
	if err == nil {
		err = h.validator.ValidateStruct(q)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	size := rendering.Size{Width: q.Width, Height: q.Height}
	img, err := h.service.Image(r.Context(), chi.URLParam(r, "page"), q.Format, size)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("ETag", img.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if img.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	if matchesETag(r, img.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+img.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	if _, err := w.Write(img.Data); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write image", slog.String("error", err.Error()))
	}
}

func parseImageQuery(r *http.Request) (ImageQuery, error) {
	values := r.URL.Query()
	q := ImageQuery{Format: values.Get("format")}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"width", &q.Width}, {"height", &q.Height}} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, apierrors.InvalidField(p.name, p.name+" must be a valid integer")
		}
		*p.dst = n
	}

	if (q.Width == 0) != (q.Height == 0) {
		return q, apierrors.InvalidField("width", "width and height must be given together")
	}
	return q, nil
}

func matchesETag(r *http.Request, etag string) bool {
	return etag != "" && r.Header.Get("If-None-Match") == etag
}
