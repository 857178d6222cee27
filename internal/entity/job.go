package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/constants"
)

// Job is one audit request and, once terminal, its outcome.
type Job struct {
	ID          uuid.UUID           `json:"id"`
	UserID      string              `json:"user_id"`
	CaseNumber  string              `json:"case_number"`
	Branch      string              `json:"branch"`
	Description string              `json:"description"`
	Feature     string              `json:"feature"`
	Status      constants.JobStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	Error       *string             `json:"error,omitempty"`

	Uploads []Upload     `json:"uploads,omitempty"`
	Result  *AuditResult `json:"result,omitempty"`
}

// ErrorText returns the job error, falling back to the audit result error.
func (j *Job) ErrorText() *string {
	if j.Error != nil && *j.Error != "" {
		return j.Error
	}
	if j.Result != nil && j.Result.Error != nil && *j.Result.Error != "" {
		return j.Result.Error
	}
	return nil
}
