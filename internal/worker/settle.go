package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/grader"
	"github.com/markwise/markwise-server/internal/store"
)

// settlementAttempts bounds retries of the finalize transaction itself.
// Retrying with the same job ID is safe: the status guards turn a
// replayed settlement into a no-op.
const settlementAttempts = 3

// errAlreadyFinalized signals that another settlement won the race; the
// transaction rolls back and nothing further happens.
var errAlreadyFinalized = errors.New("job already finalized")

// settleSuccess writes the grade result and settles the reservation in
// one transaction. The charge is final; reserved funds do not return to
// balance.
func (w *Worker) settleSuccess(ctx context.Context, jobID, userID string, outcome *grader.Outcome) {
	err := w.retrySettlement(ctx, jobID, func() error {
		return w.store.Transaction(ctx, func(tx store.Store) error {
			job, err := tx.Jobs().Get(ctx, jobID)
			if err != nil {
				return err
			}
			ok, err := tx.Jobs().Complete(ctx, jobID, outcome.Result, outcome.CostCents)
			if err != nil {
				return err
			}
			if !ok {
				return errAlreadyFinalized
			}
			return tx.Ledger().Settle(ctx, userID, job.ReservedCents)
		})
	})
	if err != nil {
		return
	}

	w.publishEvent(jobID, core.StatusComplete)
	w.log.Infow("job complete",
		"job_id", jobID,
		"range", fmt.Sprintf("[%.0f, %.0f]", outcome.Result.LowerPercent, outcome.Result.UpperPercent),
		"band", outcome.Result.LetterBand,
		"cost_cents", outcome.CostCents)

	w.notify(fmt.Sprintf("grading complete: job %s band %s", jobID, outcome.Result.LetterBand))
}

// settleFailure marks the job failed with a generic summary and refunds
// the reservation in one transaction, then writes the raw diagnostic
// detail best-effort outside it. Diagnostics are not on the critical
// path: a failed failure-record write never rolls back the refund.
func (w *Worker) settleFailure(ctx context.Context, jobID, userID string, cause error) {
	err := w.retrySettlement(ctx, jobID, func() error {
		return w.store.Transaction(ctx, func(tx store.Store) error {
			job, err := tx.Jobs().Get(ctx, jobID)
			if err != nil {
				return err
			}
			ok, err := tx.Jobs().Fail(ctx, jobID, core.SummaryGradingUnavailable)
			if err != nil {
				return err
			}
			if !ok {
				return errAlreadyFinalized
			}
			return tx.Ledger().Release(ctx, job.UserID, job.ReservedCents)
		})
	})
	if err != nil {
		return
	}

	w.publishEvent(jobID, core.StatusFailed)
	w.log.Warnw("job failed, credits refunded", "job_id", jobID, "error", cause)

	w.recordFailure(ctx, jobID, userID, cause)
	w.notify(fmt.Sprintf("grading failed and refunded: job %s", jobID))
}

// retrySettlement retries the finalize transaction on storage errors.
// errAlreadyFinalized is a clean exit: a duplicate completion from a
// retried claim, logged and dropped.
func (w *Worker) retrySettlement(ctx context.Context, jobID string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < settlementAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, errAlreadyFinalized) {
			w.log.Infow("settlement skipped, job already finalized", "job_id", jobID)
			return err
		}
		lastErr = err
		w.log.Errorw("settlement transaction failed",
			"job_id", jobID, "attempt", attempt+1, "error", err)
	}
	return lastErr
}

// recordFailure persists raw error detail for operators. Never shown to
// users.
func (w *Worker) recordFailure(ctx context.Context, jobID, userID string, cause error) {
	rec := &core.FailureRecord{
		JobID:      jobID,
		UserID:     userID,
		RawMessage: cause.Error(),
	}
	var total *grader.TotalFailureError
	if errors.As(cause, &total) {
		rec.RawMessage = total.Detail()
	}
	if err := w.store.Failures().Append(ctx, rec); err != nil {
		w.log.Errorw("failure record write failed", "job_id", jobID, "error", err)
	}
}

func (w *Worker) notify(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = w.notifier.Notify(ctx, w.opts.NotifyChannel, message)
}
