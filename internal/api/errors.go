package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/markwise/markwise-server/internal/core"
)

// ErrorResponse is the wire envelope for error payloads.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Named("api").Errorw("failed to encode response", "error", err)
	}
}

// WriteError writes a structured error response, carrying the request
// ID when one was assigned.
func WriteError(w http.ResponseWriter, status int, err *core.Error) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:      err.Code,
		Message:   err.Message,
		Retryable: err.Retryable,
		Details:   err.Details,
		RequestID: w.Header().Get("X-Request-Id"),
	}})
}

// WriteServiceError maps pipeline errors to HTTP statuses. Unknown
// errors become an opaque 500; internal detail never leaks.
func WriteServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrInsufficientCredits) {
		WriteError(w, http.StatusPaymentRequired, core.NewInsufficientCreditsError(""))
		return
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		WriteError(w, statusForCode(coreErr.Code), coreErr)
		return
	}

	zap.S().Named("api").Errorw("unhandled service error", "error", err)
	WriteError(w, http.StatusInternalServerError, core.NewInternalError("internal error"))
}

func statusForCode(code string) int {
	switch code {
	case core.ErrCodeValidation:
		return http.StatusBadRequest
	case core.ErrCodeInsufficientCredits:
		return http.StatusPaymentRequired
	case core.ErrCodeNotFound:
		return http.StatusNotFound
	case core.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
