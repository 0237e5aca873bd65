package dispatch

// Subject hierarchy for the grading pipeline.
//
//	grading.jobs              -- job announcements (payload: job ID)
//	grading.events.job.{id}   -- per-job lifecycle events
const (
	SubjectJobs    = "grading.jobs"
	eventJobPrefix = "grading.events.job."
)

func eventJobSubject(jobID string) string { return eventJobPrefix + jobID }
