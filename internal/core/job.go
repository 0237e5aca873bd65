package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job status values. Transitions are monotonic:
// queued -> processing -> complete | failed.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// IsTerminalStatus reports whether a job status is final.
func IsTerminalStatus(status string) bool {
	return status == StatusComplete || status == StatusFailed
}

// Job is one grading attempt against an essay. Essays may be re-graded,
// producing multiple jobs against the same essay ID.
type Job struct {
	ID            string       `json:"id"`
	EssayID       string       `json:"essay_id"`
	UserID        string       `json:"user_id"`
	Status        string       `json:"status"`
	QueuedAt      time.Time    `json:"queued_at"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	ReservedCents int64        `json:"reserved_cents"`
	CostCents     int64        `json:"cost_cents,omitempty"`
	ErrorSummary  string       `json:"error_summary,omitempty"`
	Result        *GradeResult `json:"result,omitempty"`
}

// GradeResult is the consensus output stored on a completed job.
type GradeResult struct {
	LowerPercent float64       `json:"lower_percent"`
	UpperPercent float64       `json:"upper_percent"`
	LetterBand   string        `json:"letter_band"`
	Models       []ModelResult `json:"models"`
	Feedback     Feedback      `json:"feedback"`
}

// ModelResult records one model run's contribution, included or not.
// Immutable once written.
type ModelResult struct {
	Model      string  `json:"model"`
	Percentage float64 `json:"percentage,omitempty"`
	Included   bool    `json:"included"`
	Reason     string  `json:"reason,omitempty"`
}

// Exclusion reasons recorded on non-included model results.
const (
	ReasonOutlier       = "outlier"
	ReasonRequestFailed = "request failed"
)

// Feedback is the qualitative portion of a grade, merged across the
// included model runs.
type Feedback struct {
	Strengths    []Strength    `json:"strengths,omitempty"`
	Improvements []Improvement `json:"improvements,omitempty"`
	LanguageTips []LanguageTip `json:"language_tips,omitempty"`
	Resources    []Resource    `json:"resources,omitempty"`
}

type Strength struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Evidence    string `json:"evidence,omitempty"`
}

type Improvement struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Suggestion          string   `json:"suggestion"`
	DetailedSuggestions []string `json:"detailed_suggestions,omitempty"`
}

type LanguageTip struct {
	Category string `json:"category"`
	Feedback string `json:"feedback"`
}

type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ModelRun configures one model invocation within a grading job.
type ModelRun struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// GradingConfig specifies the fan-out for one job: which models to run
// and at what temperature. Between 1 and 10 runs.
type GradingConfig struct {
	Runs []ModelRun `json:"runs"`
}

// Submission is the input to the grading pipeline.
type Submission struct {
	EssayID   string `json:"essay_id"`
	UserID    string `json:"user_id"`
	EssayText string `json:"essay_text"`
	Brief     string `json:"brief"`
	Rubric    string `json:"rubric,omitempty"`
}

// FailureRecord is an internal-only diagnostic record of a grading
// failure. Never surfaced to end users.
type FailureRecord struct {
	JobID      string    `json:"job_id"`
	UserID     string    `json:"user_id,omitempty"`
	RawMessage string    `json:"raw_message"`
	Stack      string    `json:"stack,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobEvent is broadcast on job lifecycle transitions so clients can
// stream status without polling.
type JobEvent struct {
	JobID     string          `json:"job_id"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// NewID returns a time-ordered UUID for job identifiers.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
