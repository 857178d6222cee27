package constants

// Event names pushed to a job owner's room.
const (
	EventNewJob      = "new_job"
	EventJobProgress = "job_progress"
	EventJobUpdate   = "job_update"
	EventJobFailed   = "job_failed"
)
