package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "markscope/internal/errors"
	"markscope/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler streams the current snapshot as a workbook or CSV
type ExportHandler struct {
	service      ExportServiceInterface
	query        QueryValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates a new export handler
func NewExportHandler(service ExportServiceInterface, query QueryValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		query:        query,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the export routes, mounted under /api/export
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/marks.xlsx", h.Workbook)
	r.Get("/marks.csv", h.CSV)
	return r
}

// Workbook handles GET /api/export/marks.xlsx
func (h *ExportHandler) Workbook(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.WriteWorkbook(r.Context(), &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.send(w, r, &buf, xlsxContentType, services.WorkbookFilename)
}

// CSV handles GET /api/export/marks.csv?table=assignments|modules
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	table, ok := h.query.ValidateEnum(w, r, "table",
		[]string{services.TableAssignments, services.TableModules}, services.TableAssignments)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.WriteCSV(r.Context(), &buf, table); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.send(w, r, &buf, "text/csv; charset=utf-8", table+".csv")
}

func (h *ExportHandler) send(w http.ResponseWriter, r *http.Request, buf *bytes.Buffer, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export",
			slog.String("file", filename),
			slog.String("error", err.Error()))
	}
}
