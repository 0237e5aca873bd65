package grading

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/metrics"
	"github.com/markwise/markwise-server/internal/store"
)

// Announcer is the submission path's view of the dispatcher.
type Announcer interface {
	Announce(jobID string) error
}

// Service is the entry point the rest of the application talks to:
// submission, and the read paths the UI polls.
type Service struct {
	store      store.Store
	dispatcher Announcer
	config     core.GradingConfig
	priceCents int64
	log        *zap.SugaredLogger
}

func NewService(st store.Store, dispatcher Announcer, cfg core.GradingConfig, priceCents int64) *Service {
	return &Service{
		store:      st,
		dispatcher: dispatcher,
		config:     cfg,
		priceCents: priceCents,
		log:        zap.S().Named("grading"),
	}
}

// Submit validates the submission, then creates the job and the credit
// reservation in one transaction. Only after the transaction commits is
// the job announced; a lost announcement is recovered by the reaper, so
// the announcement result is advisory.
func (s *Service) Submit(ctx context.Context, sub *core.Submission) (*core.Job, error) {
	if verr := core.ValidateSubmission(sub); verr != nil {
		return nil, verr
	}
	if verr := core.ValidateGradingConfig(&s.config); verr != nil {
		return nil, verr
	}

	job := &core.Job{
		ID:            core.NewID(),
		EssayID:       sub.EssayID,
		UserID:        sub.UserID,
		Status:        core.StatusQueued,
		QueuedAt:      time.Now(),
		ReservedCents: s.priceCents,
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.Ledger().Reserve(ctx, sub.UserID, s.priceCents); err != nil {
			return err
		}
		return tx.Jobs().Create(ctx, job, sub, &s.config)
	})
	if err != nil {
		return nil, err
	}

	metrics.JobsSubmitted.Inc()
	s.log.Infow("job submitted",
		"job_id", job.ID, "essay_id", sub.EssayID, "user_id", sub.UserID)

	if aerr := s.dispatcher.Announce(job.ID); aerr != nil {
		// Best-effort; the reaper re-announces stale jobs.
		s.log.Warnw("announce failed, reaper will recover", "job_id", job.ID, "error", aerr)
	}
	return job, nil
}

// GetJob returns the user-facing view of a job.
func (s *Service) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	return s.store.Jobs().Get(ctx, jobID)
}

// ListJobs returns a user's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, userID string) ([]core.Job, error) {
	return s.store.Jobs().ListByUser(ctx, userID)
}

// Balance returns the user's ledger view.
func (s *Service) Balance(ctx context.Context, userID string) (*core.Balance, error) {
	return s.store.Ledger().Get(ctx, userID)
}
