package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"markscope/internal/records"
	"markscope/internal/services"
)

// Generic problem types.
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeTimeout         = "/errors/timeout"
	TypePayloadTooLarge = "/errors/payload-too-large"
)

// Problem types for the mark data and chart pages.
const (
	TypeDataMalformed   = "/errors/data/malformed"
	TypeDataUnavailable = "/errors/data/unavailable"
	TypePageNotFound    = "/errors/chart/page-not-found"
)

// ErrorHandler writes every failed request as a problem document.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler returns a handler. includeStack adds goroutine stacks to
// responses and should stay off outside development.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr))

	if h.includeStack {
		problem.WithExtension("stack", stackTrace())
	}
	h.write(w, r, problem)
}

// ErrorToProblem picks the problem document for err. Unknown errors become a
// 500 whose detail does not leak the error text.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	if problem := malformedProblem(err, path); problem != nil {
		return problem
	}

	for _, m := range sentinelProblems {
		if !errors.Is(err, m.target) {
			continue
		}
		detail := m.detail
		if detail == "" {
			detail = err.Error()
		}
		return NewProblemDetails(m.status, m.problemType, m.title, detail, path)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred while processing your request", path)
}

// malformedProblem reports which record and field broke, when known.
func malformedProblem(err error, path string) *ProblemDetails {
	const title = "Malformed Source Record"

	var rec *records.MalformedRecordError
	if errors.As(err, &rec) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeDataMalformed, title, rec.Error(), path).
			WithExtension("source", rec.Source).
			WithExtension("index", rec.Index).
			WithExtension("field", rec.Field)
	}
	if errors.Is(err, records.ErrMalformedRecord) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeDataMalformed, title, err.Error(), path)
	}
	return nil
}

// sentinelProblem maps a wrapped sentinel to its problem document. An empty
// detail repeats the error text.
type sentinelProblem struct {
	target      error
	status      int
	problemType string
	title       string
	detail      string
}

var sentinelProblems = []sentinelProblem{
	{services.ErrPageNotFound, http.StatusNotFound, TypePageNotFound, "Chart Page Not Found", ""},
	{services.ErrUnsupportedFormat, http.StatusBadRequest, TypeValidation, "Unsupported Image Format", ""},
	{fs.ErrNotExist, http.StatusServiceUnavailable, TypeDataUnavailable, "Source Data Unavailable",
		"The assignment or member collection could not be read"},
}

var problemTypes = map[string]string{
	CodeValidation:      TypeValidation,
	CodeInvalidRequest:  TypeValidation,
	CodeInvalidJSON:     TypeValidation,
	CodePayloadTooLarge: TypePayloadTooLarge,
}

func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType, ok := problemTypes[apiErr.ErrorCode]
	if !ok {
		problemType = TypeInternal
	}

	problem := NewProblemDetails(apiErr.StatusCode, problemType, http.StatusText(apiErr.StatusCode),
		apiErr.Message, r.URL.Path).
		WithExtension("error_code", apiErr.ErrorCode)
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic answers a recovered panic with a 500. The panic value is only
// echoed when stacks are enabled.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())))

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred", r.URL.Path)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered)).
			WithExtension("stack", stackTrace())
	}
	h.write(w, r, problem)
}

// NotFound is the router's 404 handler.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path))
}

// MethodNotAllowed is the router's 405 handler.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeInternal, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path))
}

// write stamps the request id and renders the problem.
func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	if err := render.Render(w, r, problem); err != nil {
		h.logger.WarnContext(r.Context(), "problem response not written", slog.String("error", err.Error()))
	}
}

func stackTrace() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}
