package core

import (
	"errors"
	"fmt"
)

// Error codes returned by the grading pipeline.
const (
	ErrCodeValidation          = "validation_error"
	ErrCodeInsufficientCredits = "insufficient_credits"
	ErrCodeNotFound            = "not_found"
	ErrCodeConflict            = "conflict"
	ErrCodeInternal            = "internal_error"
)

// Sentinel errors for callers that branch on cause rather than code.
var (
	// ErrInsufficientCredits is returned by Reserve when the user's
	// available balance does not cover the reservation. No side effects
	// have occurred when this is returned.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrTotalGradingFailure is returned by the orchestrator when zero
	// model runs produced a usable percentage.
	ErrTotalGradingFailure = errors.New("all grading runs failed")
)

// Error is a structured pipeline error with a stable code, a user-safe
// message, and optional machine-readable details.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewValidationError creates a validation error. Not retryable.
func NewValidationError(message string, details map[string]any) *Error {
	return &Error{Code: ErrCodeValidation, Message: message, Details: details}
}

// NewInsufficientCreditsError creates a credit-reservation refusal.
func NewInsufficientCreditsError(userID string) *Error {
	return &Error{
		Code:    ErrCodeInsufficientCredits,
		Message: "Not enough credits to start grading.",
		Details: map[string]any{"user_id": userID},
	}
}

// NewNotFoundError creates a not-found error for a resource.
func NewNotFoundError(resourceType, resourceID string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s '%s' not found.", resourceType, resourceID),
		Details: map[string]any{
			"resource_type": resourceType,
			"resource_id":   resourceID,
		},
	}
}

// NewConflictError creates a state-conflict error (e.g. finalizing a job
// that is not processing).
func NewConflictError(message string, details map[string]any) *Error {
	return &Error{Code: ErrCodeConflict, Message: message, Details: details}
}

// NewInternalError creates a retryable internal error.
func NewInternalError(message string) *Error {
	return &Error{Code: ErrCodeInternal, Message: message, Retryable: true}
}

// User-facing failure summaries. Always one of this fixed set; raw
// provider error text never reaches the user.
const (
	SummaryGradingUnavailable = "grading temporarily unavailable, credits refunded"
)
