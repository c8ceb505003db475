package handler

// RESPONSE HELPERS:
// Every body this API writes is one of two envelopes.
//
//	success: {"status":"success", "message":"...", "data":{...}}
//	error:   {"status":"error", "error":"NotFound", "message":"...", "stackTrace":[...]}
//
// The client can always branch on "status" first and then read either
// "data" or "error" without guessing the shape.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/vem/internal/apperror"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// SuccessResponse wraps every 2xx body.
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Status     string   `json:"status"`
	Error      string   `json:"error"`   // machine-readable name, e.g. "NotFound"
	Message    string   `json:"message"` // human-readable description
	Field      string   `json:"field,omitempty"`
	StackTrace []string `json:"stackTrace,omitempty"` // development only
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body. Once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, SuccessResponse{Status: statusSuccess, Message: message, Data: data})
}

// ErrorResponder maps domain errors to HTTP responses.
//
// ERROR MAPPING:
// The service layer returns apperror values; this is the only place that
// knows about status codes.
//
//	ErrValidation   → 400 ValidationError
//	ErrBadRequest   → 400 BadRequest   (includes bad-signature and malformed tokens)
//	ErrUnauthorized → 401 Unauthorized (includes expired tokens)
//	ErrForbidden    → 403 Forbidden
//	ErrNotFound     → 404 NotFound
//	ErrConflict     → 409 Conflict     (includes storage Duplicate errors)
//	anything else   → 500 InternalServerError
//
// Its Write method has the auth.ErrorFunc signature, so the bearer and role
// middleware answer with the same envelope as the handlers.
type ErrorResponder struct {
	logger *slog.Logger
	dev    bool
}

// NewErrorResponder creates an ErrorResponder. With dev set, error bodies
// carry the wrapped error chain as "stackTrace", and 500s keep their real
// message.
func NewErrorResponder(logger *slog.Logger, dev bool) *ErrorResponder {
	return &ErrorResponder{logger: logger, dev: dev}
}

// Write sends err as an error envelope.
func (e *ErrorResponder) Write(w http.ResponseWriter, r *http.Request, err error) {
	status, name := classify(err)

	resp := ErrorResponse{
		Status: statusError,
		Error:  name,
	}

	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	} else {
		// NEVER expose internal details outside development: the raw error
		// may carry SQL, hostnames or file paths.
		resp.Message = "An internal error occurred"
		e.logger.Error("request failed",
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if e.dev {
			resp.Message = err.Error()
		}
	}

	if e.dev {
		resp.StackTrace = errorChain(err)
	}

	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "ValidationError"
	case errors.Is(err, apperror.ErrBadRequest):
		return http.StatusBadRequest, "BadRequest"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "Conflict"
	default:
		return http.StatusInternalServerError, "InternalServerError"
	}
}

// errorChain lists the message of every error on the Unwrap chain,
// outermost first.
func errorChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}
