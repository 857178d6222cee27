package entity

import "time"

// FileView is an upload as clients see it.
type FileView struct {
	PermanentFileName string `json:"permanent_file_name"`
	OriginalName      string `json:"original_name"`
}

// JobView is the client-facing shape of a job, used by the HTTP API and
// by pushed events. Timestamps are UTC.
type JobView struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CaseNumber  string     `json:"case_number"`
	Branch      string     `json:"branch"`
	Feature     string     `json:"feature"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	Files       []FileView `json:"files"`
	CompletedAt *time.Time `json:"completed_at"`
	Accuracy    *string    `json:"accuracy"`
	Issues      []string   `json:"issues"`
	Error       *string    `json:"error"`
}

// View flattens the job, its uploads and its result.
func (j *Job) View() JobView {
	v := JobView{
		ID:          j.ID.String(),
		UserID:      j.UserID,
		CaseNumber:  j.CaseNumber,
		Branch:      j.Branch,
		Feature:     j.Feature,
		Description: j.Description,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt.UTC(),
		Files:       make([]FileView, 0, len(j.Uploads)),
		Issues:      []string{},
		Error:       j.ErrorText(),
	}
	for _, u := range j.Uploads {
		v.Files = append(v.Files, FileView{PermanentFileName: u.FileName, OriginalName: u.OriginalName})
	}
	if r := j.Result; r != nil {
		at := r.CompletedAt.UTC()
		v.CompletedAt = &at
		v.Accuracy = r.Accuracy
		if r.Issues != nil {
			v.Issues = r.Issues
		}
	}
	return v
}
