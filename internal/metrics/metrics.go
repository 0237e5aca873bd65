package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "markwise_jobs_submitted_total",
		Help: "Grading jobs accepted by the submission path.",
	})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "markwise_jobs_completed_total",
		Help: "Grading jobs settled with a consensus result.",
	})

	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "markwise_jobs_failed_total",
		Help: "Grading jobs settled as failed and refunded.",
	})

	RunsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "markwise_model_runs_succeeded_total",
		Help: "Model runs that produced a usable percentage.",
	})

	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "markwise_model_runs_failed_total",
		Help: "Model runs that exhausted their retries.",
	})

	ReaperRequeues = promauto.NewCounter(prometheus.CounterOpts{
		Name: "markwise_reaper_requeues_total",
		Help: "Stale jobs re-announced by the reaper.",
	})

	GradingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "markwise_grading_duration_seconds",
		Help:    "Wall time from claim to settlement per job.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
