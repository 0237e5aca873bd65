package core

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls per-run retry behavior inside the orchestrator.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialInterval is the backoff before the first retry.
	InitialInterval time.Duration

	// Coefficient multiplies the interval per attempt (exponential).
	Coefficient float64

	// MaxInterval caps the computed backoff. Zero means uncapped.
	MaxInterval time.Duration

	// Jitter randomizes the backoff within [0.5x, 1.5x] to avoid
	// synchronized retries across concurrent runs.
	Jitter bool
}

// DefaultRetryPolicy matches the pipeline defaults: two retries with
// exponential backoff starting at one second, capped at ten.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		InitialInterval: time.Second,
		Coefficient:     2.0,
		MaxInterval:     10 * time.Second,
		Jitter:          true,
	}
}

// Backoff returns the delay before the given retry attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	initial := p.InitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	coeff := p.Coefficient
	if coeff <= 0 {
		coeff = 2.0
	}

	d := time.Duration(float64(initial) * math.Pow(coeff, float64(attempt-1)))
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}

	if p.Jitter {
		// 0.5x to 1.5x
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	return d
}
