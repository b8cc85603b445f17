package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"markscope/internal/charts"
	apierrors "markscope/internal/errors"
	"markscope/internal/render"
)

// ValidationMiddleware checks request bodies and validates decoded query and
// body structs against their validate tags.
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

const defaultMaxBodySize = 1 << 20

func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("chartpage", isChartPage)
	v.RegisterValidation("imageformat", isImageFormat)
	v.RegisterTagNameFunc(wireName)

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  defaultMaxBodySize,
	}
}

// wireName reports a field by its query or JSON name, so messages use the
// names the client sent.
func wireName(fld reflect.StructField) string {
	for _, tag := range []string{"query", "json"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return fld.Name
}

// bodyless methods skip body checks.
var bodyless = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// ValidateRequest rejects bodies over the size limit or that are not JSON.
// The body is buffered and replaced so handlers can still decode it.
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bodyless[r.Method] || r.Body == nil || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.maxBodySize {
			m.errorHandler.HandleError(w, r, apierrors.TooLarge(r.ContentLength, m.maxBodySize))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, m.maxBodySize))
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			m.errorHandler.HandleError(w, r, apierrors.TooLarge(tooLarge.Limit+1, m.maxBodySize))
			return
		case err != nil:
			m.logger.WarnContext(r.Context(), "failed to read request body",
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.GetReqID(r.Context())))
			m.errorHandler.HandleError(w, r, apierrors.BadRequest(err))
			return
		}

		if len(body) > 0 && !json.Valid(body) {
			m.errorHandler.HandleError(w, r, apierrors.New(http.StatusBadRequest,
				apierrors.CodeInvalidJSON, "Request body contains invalid JSON"))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// ValidateStruct returns an APIError naming every rejected field.
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.BadRequest(err)
	}

	fields := make([]apierrors.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, apierrors.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return apierrors.InvalidFields(fields)
}

// fieldMessage phrases a validator failure for the response
func fieldMessage(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, param)
	case "chartpage":
		return fmt.Sprintf("%s must be a page number or slug", field)
	case "imageformat":
		return fmt.Sprintf("%s must be png or svg", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func isChartPage(fl validator.FieldLevel) bool {
	_, err := charts.ParsePage(fl.Field().String())
	return err == nil
}

func isImageFormat(fl validator.FieldLevel) bool {
	_, err := render.ParseFormat(fl.Field().String())
	return err == nil
}

// QueryParamValidator checks single query parameters outside a struct.
type QueryParamValidator struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateEnum returns the parameter, or defaultValue when absent. On a value
// outside allowed it writes a 400 and returns false.
func (v *QueryParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	for _, a := range allowed {
		if value == a {
			return value, true
		}
	}

	v.errorHandler.HandleError(w, r, apierrors.InvalidField(param, fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}
