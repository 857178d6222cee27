package entity

import (
	"time"

	"github.com/google/uuid"
)

// Upload is one file attached to a job.
type Upload struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	OriginalName string    `json:"original_name"`
	FileName     string    `json:"permanent_file_name"`
	StoragePath  string    `json:"-"`
	Position     int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
