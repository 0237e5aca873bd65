package grader

import (
	"context"
	"errors"

	"github.com/markwise/markwise-server/internal/core"
)

// InferRequest is one grading invocation against the model-inference
// collaborator.
type InferRequest struct {
	Model       string
	Temperature float64
	EssayText   string
	Brief       string
	Rubric      string
}

// Inference is a provider's verdict on one essay.
type Inference struct {
	Percentage float64
	Feedback   core.Feedback
	CostCents  int64
}

// Provider is the external model-inference collaborator. Implementations
// must distinguish transient failures (worth retrying) by wrapping them
// in TransientError.
type Provider interface {
	Infer(ctx context.Context, req InferRequest) (*Inference, error)
}

// TransientError marks a provider failure as retryable: rate limits,
// upstream 5xx, timeouts.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient provider error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
