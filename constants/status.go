package constants

// JobStatus is the canonical status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued     JobStatus = "queued"     // initial state, waiting for a worker
	JobStatusProcessing JobStatus = "processing" // claimed by exactly one worker
	JobStatusCompleted  JobStatus = "completed"  // terminal success
	JobStatusFailed     JobStatus = "failed"     // terminal failure
	JobStatusCanceled   JobStatus = "canceled"   // terminal, requested by the owner
)

// ActiveStatuses are the states a job may be canceled from.
var ActiveStatuses = []JobStatus{JobStatusQueued, JobStatusProcessing}

// TerminalStatuses are the states a job may be deleted in.
var TerminalStatuses = []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCanceled}

// IsTerminal reports whether no further transition is allowed out of s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// IsActive reports whether a job in s can still be canceled.
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusProcessing
}

// CanTransition reports whether from -> to follows the job state machine.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusCanceled
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusCanceled
	}
	return false
}
