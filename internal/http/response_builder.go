// Package http provides the JSON API over the ledger facade.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the mapping from ledger errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"gagyebu/internal/auth"
	"gagyebu/internal/core"
	"gagyebu/internal/storage"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encoding failed"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 response with a bearer challenge.
func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).
		Header("WWW-Authenticate", `Bearer realm="gagyebu"`)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ErrorFor maps a ledger error onto its response. Anything unrecognised is a
// 500 whose body does not leak the underlying message.
func ErrorFor(err error) *ResponseBuilder {
	var verr *core.ValidationError
	var perr *ParamError
	switch {
	case errors.As(err, &verr):
		return NewResponse().
			Status(http.StatusUnprocessableEntity).
			JSON(ErrorBody{Error: verr.Err.Error(), Field: verr.Field})
	case errors.As(err, &perr):
		return BadRequestError(perr.Error())
	case errors.Is(err, storage.ErrDuplicateGoal), errors.Is(err, storage.ErrDuplicateUser):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ErrorResponse(http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		return UnauthorizedError("invalid or missing token")
	default:
		return InternalServerError("internal error")
	}
}
