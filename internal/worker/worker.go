package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/grader"
	"github.com/markwise/markwise-server/internal/metrics"
	"github.com/markwise/markwise-server/internal/notify"
	"github.com/markwise/markwise-server/internal/store"
)

// JobSource is the worker's view of the dispatcher.
type JobSource interface {
	Listen() (<-chan string, func(), error)
}

// EventSink publishes job lifecycle events after state commits.
type EventSink interface {
	PublishJobEvent(event *core.JobEvent) error
}

// Grader runs a job's model fan-out to a terminal outcome.
type Grader interface {
	Grade(ctx context.Context, sub *core.Submission, cfg *core.GradingConfig) (*grader.Outcome, error)
}

// Options tunes worker concurrency and the notification channel.
type Options struct {
	// Slots bounds how many jobs one worker processes concurrently.
	Slots int

	// NotifyChannel receives the settlement chat-ops messages.
	NotifyChannel string
}

// Worker consumes job announcements and drives each claimed job through
// grading and settlement. Claim's atomic status transition is the only
// mutual exclusion; any number of workers may run against the same
// store.
type Worker struct {
	store    store.Store
	source   JobSource
	events   EventSink
	grader   Grader
	notifier notify.Notifier
	opts     Options
	log      *zap.SugaredLogger
}

func New(st store.Store, source JobSource, events EventSink, g Grader, notifier notify.Notifier, opts Options) *Worker {
	if opts.Slots <= 0 {
		opts.Slots = 4
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Worker{
		store:    st,
		source:   source,
		events:   events,
		grader:   g,
		notifier: notifier,
		opts:     opts,
		log:      zap.S().Named("worker"),
	}
}

// Run listens for announcements until ctx is cancelled. In-flight jobs
// are allowed to finish.
func (w *Worker) Run(ctx context.Context) error {
	jobs, unsubscribe, err := w.source.Listen()
	if err != nil {
		return err
	}
	defer unsubscribe()

	w.log.Infow("worker listening", "slots", w.opts.Slots)

	slots := make(chan struct{}, w.opts.Slots)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case jobID, ok := <-jobs:
			if !ok {
				wg.Wait()
				return nil
			}
			slots <- struct{}{}
			wg.Add(1)
			go func(jobID string) {
				defer wg.Done()
				defer func() { <-slots }()
				w.Process(ctx, jobID)
			}(jobID)
		}
	}
}

// Process claims and runs one job. Losing the claim race is not an
// error; the announcement was simply stale or another worker won.
func (w *Worker) Process(ctx context.Context, jobID string) {
	claimed, err := w.store.Jobs().Claim(ctx, jobID)
	if err != nil {
		w.log.Errorw("claim failed", "job_id", jobID, "error", err)
		return
	}
	if !claimed {
		return
	}

	start := time.Now()
	w.publishEvent(jobID, core.StatusProcessing)

	sub, cfg, err := w.store.Jobs().Payload(ctx, jobID)
	if err != nil {
		w.log.Errorw("job payload unreadable", "job_id", jobID, "error", err)
		w.settleFailure(ctx, jobID, "", err)
		return
	}

	outcome, err := w.grader.Grade(ctx, sub, cfg)
	if err != nil {
		w.settleFailure(ctx, jobID, sub.UserID, err)
		metrics.JobsFailed.Inc()
		metrics.GradingDuration.Observe(time.Since(start).Seconds())
		return
	}

	w.settleSuccess(ctx, jobID, sub.UserID, outcome)
	metrics.JobsCompleted.Inc()
	metrics.GradingDuration.Observe(time.Since(start).Seconds())
}

func (w *Worker) publishEvent(jobID, status string) {
	if w.events == nil {
		return
	}
	_ = w.events.PublishJobEvent(&core.JobEvent{
		JobID:     jobID,
		Status:    status,
		Timestamp: time.Now(),
	})
}
