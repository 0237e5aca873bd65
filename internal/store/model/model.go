package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/markwise/markwise-server/internal/core"
)

// JSONField stores a typed value as a JSON column.
type JSONField[T any] struct {
	Data T
}

func MakeJSONField[T any](data T) *JSONField[T] {
	return &JSONField[T]{Data: data}
}

func (f *JSONField[T]) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f.Data)
}

func (f *JSONField[T]) Scan(value any) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	return json.Unmarshal(raw, &f.Data)
}

// LedgerAccount is one user's credit balance. With reservations deducted
// from balance at reserve time, the balance column is the user's
// spendable (available) credits; balance + reserved is total owned.
// Mutated only through the ledger store's Reserve, Settle and Release.
type LedgerAccount struct {
	UserID        string `gorm:"primaryKey;type:VARCHAR;size:64"`
	BalanceCents  int64  `gorm:"not null;default:0;check:balance_cents >= 0"`
	ReservedCents int64  `gorm:"not null;default:0;check:reserved_cents >= 0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GradingJob is one grading attempt. Rows are never deleted; terminal
// jobs form the audit trail.
type GradingJob struct {
	ID            string `gorm:"primaryKey;type:VARCHAR;size:36"`
	EssayID       string `gorm:"index;not null"`
	UserID        string `gorm:"index;not null"`
	Status        string `gorm:"index;not null"`
	QueuedAt      time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ReservedCents int64
	CostCents     int64
	ErrorSummary  string
	Result        *JSONField[core.GradeResult]   `gorm:"type:jsonb"`
	Submission    *JSONField[core.Submission]    `gorm:"type:jsonb"`
	Config        *JSONField[core.GradingConfig] `gorm:"type:jsonb"`
}

func (j *GradingJob) ToCore() *core.Job {
	job := &core.Job{
		ID:            j.ID,
		EssayID:       j.EssayID,
		UserID:        j.UserID,
		Status:        j.Status,
		QueuedAt:      j.QueuedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
		ReservedCents: j.ReservedCents,
		CostCents:     j.CostCents,
		ErrorSummary:  j.ErrorSummary,
	}
	if j.Result != nil {
		result := j.Result.Data
		job.Result = &result
	}
	return job
}

// FailureRecord is an append-only diagnostic row written on terminal
// grading failures. Read only by operator tooling.
type FailureRecord struct {
	ID         uint   `gorm:"primaryKey"`
	JobID      string `gorm:"index;not null"`
	UserID     string
	RawMessage string `gorm:"type:text"`
	Stack      string `gorm:"type:text"`
	CreatedAt  time.Time
}

func (r *FailureRecord) ToCore() *core.FailureRecord {
	return &core.FailureRecord{
		JobID:      r.JobID,
		UserID:     r.UserID,
		RawMessage: r.RawMessage,
		Stack:      r.Stack,
		CreatedAt:  r.CreatedAt,
	}
}
