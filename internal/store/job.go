package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/store/model"
)

// Jobs is the durable record of grading job lifecycle state. Status
// transitions are guarded UPDATEs: the WHERE clause on the current
// status is the exactly-once-processing mechanism, so claims and
// finalizations race safely across workers without external locks.
type Jobs interface {
	Create(ctx context.Context, job *core.Job, sub *core.Submission, cfg *core.GradingConfig) error
	Get(ctx context.Context, jobID string) (*core.Job, error)
	Payload(ctx context.Context, jobID string) (*core.Submission, *core.GradingConfig, error)
	Claim(ctx context.Context, jobID string) (bool, error)
	Requeue(ctx context.Context, jobID string, startedBefore time.Time) (bool, error)
	Complete(ctx context.Context, jobID string, result *core.GradeResult, costCents int64) (bool, error)
	Fail(ctx context.Context, jobID string, summary string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]core.Job, error)
	ListStale(ctx context.Context, queuedBefore, processingBefore time.Time) ([]core.Job, error)
}

type JobStore struct {
	db *gorm.DB
}

var _ Jobs = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Jobs {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *core.Job, sub *core.Submission, cfg *core.GradingConfig) error {
	row := model.GradingJob{
		ID:            job.ID,
		EssayID:       job.EssayID,
		UserID:        job.UserID,
		Status:        core.StatusQueued,
		QueuedAt:      job.QueuedAt,
		ReservedCents: job.ReservedCents,
		Submission:    model.MakeJSONField(*sub),
		Config:        model.MakeJSONField(*cfg),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*core.Job, error) {
	row, err := s.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return row.ToCore(), nil
}

// Payload returns the stored submission and grading configuration for a
// claimed job. Only the worker reads these; they are not part of the
// user-facing job view.
func (s *JobStore) Payload(ctx context.Context, jobID string) (*core.Submission, *core.GradingConfig, error) {
	row, err := s.get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if row.Submission == nil || row.Config == nil {
		return nil, nil, core.NewInternalError("job payload missing for " + jobID)
	}
	sub := row.Submission.Data
	cfg := row.Config.Data
	return &sub, &cfg, nil
}

// Claim transitions queued -> processing and stamps started_at. Returns
// false when the job is not queued: a reaper re-announcement and the
// original delivery may race, and only one caller wins.
func (s *JobStore) Claim(ctx context.Context, jobID string) (bool, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&model.GradingJob{}).
		Where("id = ? AND status = ?", jobID, core.StatusQueued).
		Updates(map[string]any{
			"status":     core.StatusProcessing,
			"started_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Requeue returns a stalled processing job to queued so it can be
// claimed again. The started_at guard keeps the reaper from requeueing
// a job a live worker claimed after the staleness scan read it. This is
// the one sanctioned backward transition; it exists only for crash
// recovery.
func (s *JobStore) Requeue(ctx context.Context, jobID string, startedBefore time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&model.GradingJob{}).
		Where("id = ? AND status = ? AND started_at < ?", jobID, core.StatusProcessing, startedBefore).
		Updates(map[string]any{
			"status":     core.StatusQueued,
			"started_at": nil,
			"queued_at":  time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Complete transitions processing -> complete with the consensus result.
// Returns false (no-op) when the job is not processing, guarding against
// duplicate completions from a retried claim.
func (s *JobStore) Complete(ctx context.Context, jobID string, result *core.GradeResult, costCents int64) (bool, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.GradingJob{}).
		Where("id = ? AND status = ?", jobID, core.StatusProcessing).
		Updates(map[string]any{
			"status":       core.StatusComplete,
			"completed_at": now,
			"cost_cents":   costCents,
			"result":       model.MakeJSONField(*result),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Fail transitions processing -> failed with a user-safe summary only;
// raw error detail belongs in the failure record store.
func (s *JobStore) Fail(ctx context.Context, jobID string, summary string) (bool, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.GradingJob{}).
		Where("id = ? AND status = ?", jobID, core.StatusProcessing).
		Updates(map[string]any{
			"status":        core.StatusFailed,
			"completed_at":  now,
			"error_summary": summary,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *JobStore) ListByUser(ctx context.Context, userID string) ([]core.Job, error) {
	var rows []model.GradingJob
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("queued_at DESC").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	jobs := make([]core.Job, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, *rows[i].ToCore())
	}
	return jobs, nil
}

// ListStale returns jobs stuck past their staleness thresholds: queued
// jobs whose announcement was likely lost, and processing jobs whose
// worker likely crashed mid-run.
func (s *JobStore) ListStale(ctx context.Context, queuedBefore, processingBefore time.Time) ([]core.Job, error) {
	var rows []model.GradingJob
	result := s.db.WithContext(ctx).
		Where("(status = ? AND queued_at < ?) OR (status = ? AND started_at < ?)",
			core.StatusQueued, queuedBefore,
			core.StatusProcessing, processingBefore).
		Order("queued_at").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	jobs := make([]core.Job, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, *rows[i].ToCore())
	}
	return jobs, nil
}

func (s *JobStore) get(ctx context.Context, jobID string) (*model.GradingJob, error) {
	var row model.GradingJob
	result := s.db.WithContext(ctx).First(&row, "id = ?", jobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, core.NewNotFoundError("Job", jobID)
		}
		return nil, result.Error
	}
	return &row, nil
}
