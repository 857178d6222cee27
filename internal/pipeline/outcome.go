package pipeline

import (
	"errors"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
)

// Outcome is what running a job produced. Exactly one of Verdict (completed)
// or Err (failed, canceled) is meaningful.
type Outcome struct {
	Status  constants.JobStatus
	Verdict Verdict
	Err     error
}

func Completed(v Verdict) Outcome {
	return Outcome{Status: constants.JobStatusCompleted, Verdict: v}
}

func Failed(err error) Outcome {
	return Outcome{Status: constants.JobStatusFailed, Err: err}
}

func Canceled() Outcome {
	return Outcome{Status: constants.JobStatusCanceled, Err: common.ErrJobCanceled}
}

// OutcomeOf classifies err: nil completes with v, a cancellation observed
// at a checkpoint cancels, anything else fails.
func OutcomeOf(v Verdict, err error) Outcome {
	switch {
	case err == nil:
		return Completed(v)
	case errors.Is(err, common.ErrJobCanceled):
		return Canceled()
	default:
		return Failed(err)
	}
}

// ErrorText is the message persisted for a failed job.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
