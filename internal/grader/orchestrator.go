package grader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/metrics"
)

// Options tunes the orchestrator's fan-out behavior.
type Options struct {
	Retry          core.RetryPolicy
	OverallTimeout time.Duration
	Consensus      core.ConsensusPolicy
}

// Orchestrator fans one grading job out to its configured model runs,
// retries each run independently, and reduces the survivors to a
// consensus grade.
type Orchestrator struct {
	provider Provider
	opts     Options
	log      *zap.SugaredLogger
}

// Outcome is the orchestrator's terminal result for one job.
type Outcome struct {
	Result    *core.GradeResult
	CostCents int64
}

func NewOrchestrator(provider Provider, opts Options) *Orchestrator {
	if opts.Retry == (core.RetryPolicy{}) {
		opts.Retry = core.DefaultRetryPolicy()
	}
	if opts.OverallTimeout <= 0 {
		opts.OverallTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		provider: provider,
		opts:     opts,
		log:      zap.S().Named("grader"),
	}
}

// runResult carries one run's outcome across the join barrier.
type runResult struct {
	run       core.ModelRun
	inference *Inference
	err       error
}

// Grade runs every configured model invocation concurrently and reduces
// the results. Partial failure is tolerated; if zero runs produce a
// usable percentage the returned error wraps core.ErrTotalGradingFailure
// and carries the triggering run errors for the failure record.
func (o *Orchestrator) Grade(ctx context.Context, sub *core.Submission, cfg *core.GradingConfig) (*Outcome, error) {
	if verr := core.ValidateGradingConfig(cfg); verr != nil {
		return nil, verr
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.OverallTimeout)
	defer cancel()

	results := make([]runResult, len(cfg.Runs))
	var wg sync.WaitGroup
	for i, run := range cfg.Runs {
		wg.Add(1)
		go func(i int, run core.ModelRun) {
			defer wg.Done()
			inference, err := o.invokeWithRetry(ctx, sub, run)
			results[i] = runResult{run: run, inference: inference, err: err}
		}(i, run)
	}
	wg.Wait()

	var (
		outcomes  []core.RunOutcome
		failed    []core.ModelResult
		runErrors []error
		costCents int64
	)
	for _, r := range results {
		if r.err != nil {
			metrics.RunsFailed.Inc()
			o.log.Warnw("model run exhausted retries",
				"model", r.run.Model, "error", r.err)
			failed = append(failed, core.ModelResult{
				Model:    r.run.Model,
				Included: false,
				Reason:   core.ReasonRequestFailed,
			})
			runErrors = append(runErrors, fmt.Errorf("%s: %w", r.run.Model, r.err))
			continue
		}
		metrics.RunsSucceeded.Inc()
		costCents += r.inference.CostCents
		outcomes = append(outcomes, core.RunOutcome{
			Model:      r.run.Model,
			Percentage: r.inference.Percentage,
			Feedback:   r.inference.Feedback,
		})
	}

	if len(outcomes) == 0 {
		return nil, &TotalFailureError{RunErrors: runErrors}
	}

	return &Outcome{
		Result:    core.Reduce(outcomes, failed, o.opts.Consensus),
		CostCents: costCents,
	}, nil
}

// invokeWithRetry runs a single model invocation with the per-run retry
// policy. Permanent errors abort immediately; transient errors back off
// and retry until the budget or the overall deadline runs out.
func (o *Orchestrator) invokeWithRetry(ctx context.Context, sub *core.Submission, run core.ModelRun) (*Inference, error) {
	req := InferRequest{
		Model:       run.Model,
		Temperature: run.Temperature,
		EssayText:   sub.EssayText,
		Brief:       sub.Brief,
		Rubric:      sub.Rubric,
	}

	var lastErr error
	for attempt := 0; attempt <= o.opts.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.opts.Retry.Backoff(attempt)):
			}
		}

		inference, err := o.provider.Infer(ctx, req)
		if err == nil {
			return inference, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

// TotalFailureError reports that every model run failed. The run errors
// are persisted to the failure record store; the user only ever sees a
// generic summary.
type TotalFailureError struct {
	RunErrors []error
}

func (e *TotalFailureError) Error() string {
	return fmt.Sprintf("%v (%d runs failed)", core.ErrTotalGradingFailure, len(e.RunErrors))
}

func (e *TotalFailureError) Unwrap() error { return core.ErrTotalGradingFailure }

// Detail flattens the run errors for the failure record.
func (e *TotalFailureError) Detail() string {
	msg := ""
	for i, err := range e.RunErrors {
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}
	return msg
}
