package core

import "fmt"

const (
	// MaxRuns bounds the fan-out of a single grading job.
	MaxRuns = 10

	// MaxEssayBytes bounds essay text accepted for grading.
	MaxEssayBytes = 256 * 1024
)

// ValidateSubmission checks a submission before any credits are reserved.
func ValidateSubmission(sub *Submission) *Error {
	if sub.EssayID == "" {
		return NewValidationError("essay_id is required", map[string]any{"field": "essay_id"})
	}
	if sub.UserID == "" {
		return NewValidationError("user_id is required", map[string]any{"field": "user_id"})
	}
	if sub.EssayText == "" {
		return NewValidationError("essay_text is required", map[string]any{"field": "essay_text"})
	}
	if len(sub.EssayText) > MaxEssayBytes {
		return NewValidationError("essay_text exceeds maximum size", map[string]any{
			"field":     "essay_text",
			"max_bytes": MaxEssayBytes,
		})
	}
	if sub.Brief == "" {
		return NewValidationError("brief is required", map[string]any{"field": "brief"})
	}
	return nil
}

// ValidateGradingConfig checks a grading configuration: 1 to MaxRuns model
// runs, each with a model identifier and a temperature in [0, 1].
func ValidateGradingConfig(cfg *GradingConfig) *Error {
	if len(cfg.Runs) == 0 {
		return NewValidationError("grading config requires at least one model run", nil)
	}
	if len(cfg.Runs) > MaxRuns {
		return NewValidationError(
			fmt.Sprintf("grading config exceeds maximum of %d model runs", MaxRuns),
			map[string]any{"runs": len(cfg.Runs)},
		)
	}
	for i, run := range cfg.Runs {
		if run.Model == "" {
			return NewValidationError("model run missing model identifier", map[string]any{"run": i})
		}
		if run.Temperature < 0 || run.Temperature > 1 {
			return NewValidationError("model run temperature must be within [0, 1]", map[string]any{
				"run":         i,
				"temperature": run.Temperature,
			})
		}
	}
	return nil
}
