package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditResult is the terminal outcome of a job. Failures carry only Error.
type AuditResult struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	Accuracy    *string   `json:"accuracy"`
	Issues      []string  `json:"issues"`
	CompletedAt time.Time `json:"completed_at"`
	Error       *string   `json:"error,omitempty"`
}
