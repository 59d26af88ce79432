package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/parking-occupancy/internal/application"
)

// Error codes returned in errorResponse.ErrorCode.
const (
	codeBadRequest             = "BAD_REQUEST"
	codeValidationFailed       = "VALIDATION_FAILED"
	codeNoActiveSession        = "NO_ACTIVE_SESSION"
	codeDuplicateActiveSession = "DUPLICATE_ACTIVE_SESSION"
	codeConcurrentModification = "CONCURRENT_MODIFICATION"
	codeInternal               = "INTERNAL_ERROR"
)

var errBadRequestBody = errors.New("request body must be a JSON object")

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: orDefault(logger)}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// requestLogger prefers the request-scoped logger installed by RequestLogger
// and tags it with the handler and operation.
func requestLogger(ctx context.Context, fallback *slog.Logger, handler, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = orDefault(fallback)
	}
	return logger.With(append([]any{"handler", handler, "operation", operation}, attrs...)...)
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, codeInternal, errors.New("unknown error"))
		return
	}

	var (
		vErr *application.ValidationError
		cErr *application.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: codeValidationFailed,
			Message:   "request validation failed",
			Errors:    vErr.FieldErrors,
		})
	case errors.Is(err, application.ErrNoActiveSession):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: codeNoActiveSession,
			Message:   "vehicle has no active parking session",
		})
	case errors.Is(err, application.ErrDuplicateActiveSession):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: codeDuplicateActiveSession,
			Message:   "vehicle already has an active parking session",
		})
	case errors.As(err, &cErr):
		w.Header().Set("Retry-After", "1")
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: codeConcurrentModification,
			Message:   "the session was modified concurrently, retry the request",
		})
	default:
		// ErrNotFound here means the store lost a row it just returned.
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: codeInternal,
			Message:   "internal server error",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
