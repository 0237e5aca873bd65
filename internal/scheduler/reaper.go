package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/metrics"
	"github.com/markwise/markwise-server/internal/store"
)

// Announcer re-broadcasts recovered jobs.
type Announcer interface {
	Announce(jobID string) error
}

// Options sets the reaper's scan interval and staleness thresholds.
type Options struct {
	Interval        time.Duration
	QueuedStale     time.Duration
	ProcessingStale time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.QueuedStale <= 0 {
		o.QueuedStale = 10 * time.Minute
	}
	if o.ProcessingStale <= 0 {
		o.ProcessingStale = 30 * time.Minute
	}
	return o
}

// Reaper periodically scans for jobs stuck past their staleness
// thresholds and re-announces them. It is the system's only durability
// mechanism against lost announcements, worker crashes and deploy-time
// restarts: bounded worst-case latency bought with a simple scan
// instead of a durable queue.
type Reaper struct {
	store      store.Store
	dispatcher Announcer
	opts       Options
	cron       *cron.Cron
	log        *zap.SugaredLogger

	stopOnce sync.Once
}

func New(st store.Store, dispatcher Announcer, opts Options) *Reaper {
	return &Reaper{
		store:      st,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
		cron:       cron.New(),
		log:        zap.S().Named("reaper"),
	}
}

// Start schedules the periodic scan.
func (r *Reaper) Start() error {
	spec := fmt.Sprintf("@every %s", r.opts.Interval)
	if _, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.Interval)
		defer cancel()
		if err := r.Scan(ctx); err != nil {
			r.log.Errorw("stale job scan failed", "error", err)
		}
	}); err != nil {
		return err
	}
	r.cron.Start()
	r.log.Infow("reaper started",
		"interval", r.opts.Interval,
		"queued_stale", r.opts.QueuedStale,
		"processing_stale", r.opts.ProcessingStale)
	return nil
}

// Stop halts the schedule and waits for a running scan. Idempotent.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		<-r.cron.Stop().Done()
	})
}

// Scan re-announces every stale job once. Queued jobs are re-announced
// as-is; processing jobs past the crash threshold are first returned to
// queued so a Claim can succeed. A live worker racing the reset is
// excluded by the started_at guard on Requeue.
func (r *Reaper) Scan(ctx context.Context) error {
	now := time.Now()
	processingCutoff := now.Add(-r.opts.ProcessingStale)

	stale, err := r.store.Jobs().ListStale(ctx, now.Add(-r.opts.QueuedStale), processingCutoff)
	if err != nil {
		return err
	}

	for _, job := range stale {
		if job.Status == core.StatusProcessing {
			requeued, err := r.store.Jobs().Requeue(ctx, job.ID, processingCutoff)
			if err != nil {
				r.log.Errorw("requeue failed", "job_id", job.ID, "error", err)
				continue
			}
			if !requeued {
				continue
			}
			r.log.Warnw("requeued stalled job", "job_id", job.ID, "started_at", job.StartedAt)
		} else {
			r.log.Warnw("re-announcing stale queued job", "job_id", job.ID, "queued_at", job.QueuedAt)
		}

		metrics.ReaperRequeues.Inc()
		if err := r.dispatcher.Announce(job.ID); err != nil {
			// Next scan tries again.
			r.log.Warnw("re-announce failed", "job_id", job.ID, "error", err)
		}
	}
	return nil
}
