package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// Codes carried by APIError. ErrorHandler maps each to a problem type.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidJSON     = "INVALID_JSON"
	CodeValidation      = "VALIDATION_FAILED"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)

// APIError is a request refused before it reached a service: a bad query
// parameter, an unreadable body or one that is too large.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render lets go-chi/render write the error with its own status.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// FieldError is one rejected query or body field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is the details payload of a rejection naming several fields.
type FieldErrors struct {
	Errors []FieldError `json:"errors"`
}

// New returns an APIError. At most one details value is kept.
func New(statusCode int, errorCode, message string, details ...interface{}) *APIError {
	e := &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// BadRequest wraps a failure to read or decode the request.
func BadRequest(err error) *APIError {
	return New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// InvalidField rejects a single parameter.
func InvalidField(field, message string) *APIError {
	return New(http.StatusBadRequest, CodeValidation, "Request validation failed",
		FieldError{Field: field, Message: message})
}

// InvalidFields rejects several parameters at once.
func InvalidFields(fields []FieldError) *APIError {
	return New(http.StatusBadRequest, CodeValidation, "Request validation failed",
		FieldErrors{Errors: fields})
}

// TooLarge rejects a body of size bytes against a limit.
func TooLarge(size, limit int64) *APIError {
	return New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body exceeds maximum allowed size",
		map[string]int64{"size": size, "max_size": limit})
}
