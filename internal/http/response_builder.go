// This file implements the Builder Pattern for constructing JSON responses
// and the mapping from service errors to HTTP statuses.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kopilka/internal/core"
	"kopilka/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Write sends the built response. A nil body is sent as no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.data)
	if err != nil {
		http.Error(w, `{"error":{"code":"internal_error","message":"encoding failed"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse creates an error response with the given status and code.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// NotFoundError creates a 404 error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, log.ErrorTypeNotFound, message)
}

// statusForError maps service errors onto HTTP statuses and error codes.
// Unknown errors are 500 and their message is not exposed.
func statusForError(err error) (int, string, string) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, log.ErrorTypeValidation, err.Error()
	case errors.Is(err, core.ErrInsufficientFunds):
		return http.StatusConflict, log.ErrorTypeInsufficientFunds, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound, err.Error()
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal, "internal error"
	}
}

// writeError logs err with the request logger and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := statusForError(err)

	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithError(err).WithErrorType(code)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}

	ErrorResponse(status, code, message).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Data(v).Write(w)
}
