// Package dispatch accepts, cancels, deletes and lists audit jobs on behalf
// of their owners. It never runs pipeline work itself.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/async"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/entity"
	"github.com/joseph-ayodele/funeral-audit/internal/notify"
	"github.com/joseph-ayodele/funeral-audit/internal/repository"
	"github.com/joseph-ayodele/funeral-audit/internal/storage"
)

// FileInput is one submitted file. Open is called once.
type FileInput struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

type SubmitRequest struct {
	UserID      string
	CaseNumber  string
	Branch      string
	Description string
	Feature     string
	Files       []FileInput
}

type Dispatcher struct {
	jobs     repository.JobRepository
	queue    async.Queue
	files    storage.Storage
	notifier notify.Notifier
	logger   *slog.Logger
}

func New(jobs repository.JobRepository, queue async.Queue, files storage.Storage, notifier notify.Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Dispatcher{jobs: jobs, queue: queue, files: files, notifier: notifier, logger: logger}
}

func validateSubmit(req SubmitRequest) error {
	names := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		names = append(names, f.Name)
	}
	v := common.NewValidator().
		Field("user_id", req.UserID, common.Required).
		Field("branch", req.Branch, common.Required, common.MaxLen(128)).
		Field("feature", req.Feature, common.Required, common.MaxLen(64)).
		Field("case_number", req.CaseNumber, common.MaxLen(128)).
		Field("description", req.Description, common.MaxLen(2000)).
		Field("files", names, common.NonEmptyAny)
	return common.ValidateAndReturnError(v)
}

// Submit stores the files, records a queued job and hands its id to the
// workers. It returns without waiting for processing. Parts with an empty
// file name are skipped.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	if err := validateSubmit(req); err != nil {
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	job := &entity.Job{
		ID:          uuid.New(),
		UserID:      req.UserID,
		CaseNumber:  strings.TrimSpace(req.CaseNumber),
		Branch:      strings.TrimSpace(req.Branch),
		Description: req.Description,
		Feature:     req.Feature,
		Status:      constants.JobStatusQueued,
		CreatedAt:   now,
	}

	for _, f := range req.Files {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		up, err := d.save(ctx, job, f, len(job.Uploads), now)
		if err != nil {
			d.removeFiles(job.Uploads)
			return uuid.Nil, err
		}
		job.Uploads = append(job.Uploads, up)
	}

	if err := d.jobs.Create(ctx, job); err != nil {
		d.removeFiles(job.Uploads)
		return uuid.Nil, err
	}

	if err := d.queue.Enqueue(ctx, job.ID); err != nil {
		d.logger.Error("dispatch.enqueue.error", "job_id", job.ID, "error", err)
		purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if uploads, perr := d.jobs.Purge(purgeCtx, job.ID); perr != nil {
			d.logger.Error("dispatch.purge.error", "job_id", job.ID, "error", perr)
		} else {
			d.removeFiles(uploads)
		}
		return uuid.Nil, common.WrapError(err, "enqueue job")
	}

	d.logger.Info("dispatch.submit.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"job_id", job.ID,
		"user_id", job.UserID,
		"feature", job.Feature,
		"files", len(job.Uploads),
	)
	d.notifier.Notify(ctx, notify.JobEvent(constants.EventNewJob, job))
	return job.ID, nil
}

func (d *Dispatcher) save(ctx context.Context, job *entity.Job, f FileInput, position int, now time.Time) (entity.Upload, error) {
	rc, err := f.Open()
	if err != nil {
		return entity.Upload{}, common.InputError(fmt.Sprintf("cannot read %s", f.Name))
	}
	defer rc.Close()

	token := storage.TokenName(f.Name)
	loc, err := d.files.Save(ctx, job.UserID, token, rc, f.Size)
	if err != nil {
		return entity.Upload{}, common.WrapError(err, "store "+f.Name)
	}
	return entity.Upload{
		ID:           uuid.New(),
		JobID:        job.ID,
		UserID:       job.UserID,
		OriginalName: f.Name,
		FileName:     token,
		StoragePath:  loc,
		Position:     position,
		CreatedAt:    now,
	}, nil
}

// Cancel moves an active job to canceled. A worker holding the job notices
// at its next checkpoint and discards its work.
func (d *Dispatcher) Cancel(ctx context.Context, userID string, id uuid.UUID) (*entity.Job, error) {
	if err := d.jobs.Cancel(ctx, userID, id); err != nil {
		return nil, err
	}
	job, err := d.jobs.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	d.logger.Info("dispatch.cancel.ok", "job_id", id, "user_id", userID)
	d.notifier.Notify(ctx, notify.JobEvent(constants.EventJobUpdate, job))
	return job, nil
}

// Delete removes a terminal job, its result and its stored files.
func (d *Dispatcher) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	uploads, err := d.jobs.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	d.removeFiles(uploads)
	d.logger.Info("dispatch.delete.ok", "job_id", id, "user_id", userID, "files", len(uploads))
	return nil
}

// Query lists the owner's jobs, newest first.
func (d *Dispatcher) Query(ctx context.Context, userID string) ([]*entity.Job, error) {
	return d.jobs.ListByUser(ctx, userID)
}

func (d *Dispatcher) Get(ctx context.Context, userID string, id uuid.UUID) (*entity.Job, error) {
	return d.jobs.GetForUser(ctx, userID, id)
}

// removeFiles is best effort; a leftover object is logged, not returned.
func (d *Dispatcher) removeFiles(uploads []entity.Upload) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, u := range uploads {
		if err := d.files.Remove(ctx, u.StoragePath); err != nil {
			d.logger.Warn("dispatch.file.remove_error", "file", u.FileName, "error", err)
		}
	}
}
