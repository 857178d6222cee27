package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/entity"
)

// TerminalOutcome is what a worker persists when a job leaves processing.
// Failures carry only Error.
type TerminalOutcome struct {
	Status      constants.JobStatus
	Accuracy    *string
	Issues      []string
	Error       *string
	CompletedAt time.Time
}

// JobRepository is the durable store for jobs, their uploads and results.
// Every status change is a single conditional statement or one transaction.
type JobRepository interface {
	// Create inserts a queued job and its uploads atomically.
	Create(ctx context.Context, job *entity.Job) error
	// Get loads a job with uploads and result, regardless of owner.
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// GetForUser is Get scoped to an owner; foreign jobs are not found.
	GetForUser(ctx context.Context, userID string, id uuid.UUID) (*entity.Job, error)
	GetStatus(ctx context.Context, id uuid.UUID) (constants.JobStatus, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Job, error)
	// Claim moves a job from queued to processing. Exactly one caller wins;
	// every other caller gets a state conflict.
	Claim(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, userID string, id uuid.UUID) error
	// Finish writes the terminal status and the audit result in one
	// transaction. It returns common.ErrJobCanceled, and writes nothing, when
	// the job was canceled after it was claimed.
	Finish(ctx context.Context, id uuid.UUID, out TerminalOutcome) (*entity.AuditResult, error)
	// Delete removes a terminal job and returns the uploads whose objects
	// the caller must remove.
	Delete(ctx context.Context, userID string, id uuid.UUID) ([]entity.Upload, error)
	// Purge removes a job that never left queued, e.g. after a failed enqueue.
	Purge(ctx context.Context, id uuid.UUID) ([]entity.Upload, error)
	CountByStatus(ctx context.Context) (map[constants.JobStatus]int, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

var (
	jobColumns    = []string{"id", "user_id", "case_number", "branch", "description", "feature", "status", "error", "created_at"}
	uploadColumns = []string{"id", "job_id", "user_id", "original_name", "file_name", "storage_path", "position", "created_at"}
	resultColumns = []string{"id", "job_id", "accuracy", "issues", "error", "completed_at"}
)

type jobRepo struct {
	db  *DB
	log *slog.Logger
}

// NewJobRepository creates a JobRepository backed by db.
func NewJobRepository(db *DB, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepo{db: db, log: logger}
}

func (r *jobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *jobRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", common.ErrDatabase, err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				r.log.Warn("tx rollback failed", "error", rerr)
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *jobRepo) Create(ctx context.Context, job *entity.Job) error {
	b := r.builder()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		q, args := b.Insert(jobsTable).
			Columns(jobColumns...).
			Values(job.ID, job.UserID, job.CaseNumber, job.Branch, job.Description, job.Feature,
				string(job.Status), nullString(job.Error), job.CreatedAt).
			Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("%w: insert job: %v", common.ErrDatabase, err)
		}
		for i := range job.Uploads {
			u := &job.Uploads[i]
			u.JobID = job.ID
			q, args := b.Insert(uploadsTable).
				Columns(uploadColumns...).
				Values(u.ID, u.JobID, u.UserID, u.OriginalName, u.FileName, u.StoragePath, u.Position, u.CreatedAt).
				Query()
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("%w: insert upload %s: %v", common.ErrDatabase, u.OriginalName, err)
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("job.create.failed", "job_id", job.ID, "user_id", job.UserID, "error", err)
		return err
	}
	r.log.Debug("job.create.ok", "job_id", job.ID, "uploads", len(job.Uploads))
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.getWhere(ctx, entsql.EQ("id", id))
}

func (r *jobRepo) GetForUser(ctx context.Context, userID string, id uuid.UUID) (*entity.Job, error) {
	return r.getWhere(ctx, entsql.And(entsql.EQ("id", id), entsql.EQ("user_id", userID)))
}

func (r *jobRepo) getWhere(ctx context.Context, p *entsql.Predicate) (*entity.Job, error) {
	b := r.builder()
	q, args := b.Select(jobColumns...).From(b.Table(jobsTable)).Where(p).Query()
	job, err := scanJob(r.db.SQL.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %v", common.ErrDatabase, err)
	}
	if err := r.attach(ctx, r.db.SQL, []*entity.Job{job}); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) GetStatus(ctx context.Context, id uuid.UUID) (constants.JobStatus, error) {
	return r.statusOf(ctx, r.db.SQL, entsql.EQ("id", id))
}

func (r *jobRepo) statusOf(ctx context.Context, qr querier, p *entsql.Predicate) (constants.JobStatus, error) {
	b := r.builder()
	q, args := b.Select("status").From(b.Table(jobsTable)).Where(p).Query()
	var status string
	if err := qr.QueryRowContext(ctx, q, args...).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.NotFoundError("job not found")
		}
		return "", fmt.Errorf("%w: get status: %v", common.ErrDatabase, err)
	}
	return constants.JobStatus(status), nil
}

func (r *jobRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Job, error) {
	b := r.builder()
	s := b.Select(jobColumns...).From(b.Table(jobsTable)).Where(entsql.EQ("user_id", userID))
	s.OrderBy(entsql.Desc("created_at"), entsql.Asc("id"))
	q, args := s.Query()

	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	jobs := make([]*entity.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan job: %v", common.ErrDatabase, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", common.ErrDatabase, err)
	}
	if err := r.attach(ctx, r.db.SQL, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepo) Claim(ctx context.Context, id uuid.UUID) error {
	q, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusProcessing)).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(constants.JobStatusQueued)),
		)).
		Query()
	n, err := execAffected(ctx, r.db.SQL, q, args)
	if err != nil {
		return fmt.Errorf("%w: claim job: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return common.StateConflictError(fmt.Sprintf("job %s is not queued", id))
	}
	return nil
}

func (r *jobRepo) Cancel(ctx context.Context, userID string, id uuid.UUID) error {
	q, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusCanceled)).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("user_id", userID),
			entsql.In("status", statusArgs(constants.ActiveStatuses...)...),
		)).
		Query()
	n, err := execAffected(ctx, r.db.SQL, q, args)
	if err != nil {
		return fmt.Errorf("%w: cancel job: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return r.explainMiss(ctx, r.db.SQL, userID, id, "cancel")
	}
	return nil
}

func (r *jobRepo) Finish(ctx context.Context, id uuid.UUID, out TerminalOutcome) (*entity.AuditResult, error) {
	if out.Status != constants.JobStatusCompleted && out.Status != constants.JobStatusFailed {
		return nil, common.InputError(fmt.Sprintf("invalid terminal status %q", out.Status))
	}
	if out.CompletedAt.IsZero() {
		out.CompletedAt = time.Now().UTC()
	}
	res := &entity.AuditResult{
		ID:          uuid.New(),
		JobID:       id,
		Accuracy:    out.Accuracy,
		Issues:      out.Issues,
		CompletedAt: out.CompletedAt,
		Error:       out.Error,
	}
	var issues sql.NullString
	if out.Status == constants.JobStatusCompleted {
		if res.Issues == nil {
			res.Issues = []string{}
		}
		raw, err := json.Marshal(res.Issues)
		if err != nil {
			return nil, fmt.Errorf("marshal issues: %w", err)
		}
		issues = sql.NullString{String: string(raw), Valid: true}
	}

	b := r.builder()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		upd := b.Update(jobsTable).Set("status", string(out.Status))
		if out.Error != nil {
			upd.Set("error", *out.Error)
		}
		q, args := upd.Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(constants.JobStatusProcessing)),
		)).Query()
		n, err := execAffected(ctx, tx, q, args)
		if err != nil {
			return fmt.Errorf("%w: finish job: %v", common.ErrDatabase, err)
		}
		if n == 0 {
			status, err := r.statusOf(ctx, tx, entsql.EQ("id", id))
			if err != nil {
				return err
			}
			if status == constants.JobStatusCanceled {
				return common.ErrJobCanceled
			}
			return common.StateConflictError(fmt.Sprintf("job %s is %s, not processing", id, status))
		}
		q, args = b.Insert(auditResultsTable).
			Columns(resultColumns...).
			Values(res.ID, res.JobID, nullString(res.Accuracy), issues, nullString(res.Error), res.CompletedAt).
			Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("%w: insert audit result: %v", common.ErrDatabase, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *jobRepo) Delete(ctx context.Context, userID string, id uuid.UUID) ([]entity.Upload, error) {
	return r.deleteWhere(ctx, userID, id, "delete", entsql.And(
		entsql.EQ("id", id),
		entsql.EQ("user_id", userID),
		entsql.In("status", statusArgs(constants.TerminalStatuses...)...),
	))
}

func (r *jobRepo) Purge(ctx context.Context, id uuid.UUID) ([]entity.Upload, error) {
	return r.deleteWhere(ctx, "", id, "purge", entsql.And(
		entsql.EQ("id", id),
		entsql.EQ("status", string(constants.JobStatusQueued)),
	))
}

func (r *jobRepo) deleteWhere(ctx context.Context, userID string, id uuid.UUID, op string, p *entsql.Predicate) ([]entity.Upload, error) {
	var uploads []entity.Upload
	b := r.builder()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		byJob, err := r.uploadsFor(ctx, tx, []any{id})
		if err != nil {
			return err
		}
		q, args := b.Delete(jobsTable).Where(p).Query()
		n, err := execAffected(ctx, tx, q, args)
		if err != nil {
			return fmt.Errorf("%w: %s job: %v", common.ErrDatabase, op, err)
		}
		if n == 0 {
			return r.explainMiss(ctx, tx, userID, id, op)
		}
		uploads = byJob[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Debug("job.delete.ok", "op", op, "job_id", id, "uploads", len(uploads))
	return uploads, nil
}

// explainMiss turns a conditional statement that matched no row into
// not-found or a state conflict.
func (r *jobRepo) explainMiss(ctx context.Context, qr querier, userID string, id uuid.UUID, op string) error {
	p := entsql.EQ("id", id)
	if userID != "" {
		p = entsql.And(p, entsql.EQ("user_id", userID))
	}
	status, err := r.statusOf(ctx, qr, p)
	if err != nil {
		return err
	}
	return common.StateConflictError(fmt.Sprintf("cannot %s job in status %s", op, status))
}

func (r *jobRepo) CountByStatus(ctx context.Context) (map[constants.JobStatus]int, error) {
	b := r.builder()
	q, args := b.Select("status", entsql.Count("*")).
		From(b.Table(jobsTable)).
		GroupBy("status").
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: count jobs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	counts := make(map[constants.JobStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: scan count: %v", common.ErrDatabase, err)
		}
		counts[constants.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// attach loads uploads and results for jobs in two queries.
func (r *jobRepo) attach(ctx context.Context, qr querier, jobs []*entity.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	ids := make([]any, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	uploads, err := r.uploadsFor(ctx, qr, ids)
	if err != nil {
		return err
	}
	results, err := r.resultsFor(ctx, qr, ids)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		j.Uploads = uploads[j.ID]
		if j.Uploads == nil {
			j.Uploads = []entity.Upload{}
		}
		j.Result = results[j.ID]
	}
	return nil
}

func (r *jobRepo) uploadsFor(ctx context.Context, qr querier, ids []any) (map[uuid.UUID][]entity.Upload, error) {
	b := r.builder()
	s := b.Select(uploadColumns...).From(b.Table(uploadsTable)).Where(entsql.In("job_id", ids...))
	s.OrderBy(entsql.Asc("job_id"), entsql.Asc("position"))
	q, args := s.Query()

	rows, err := qr.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list uploads: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]entity.Upload)
	for rows.Next() {
		var u entity.Upload
		if err := rows.Scan(&u.ID, &u.JobID, &u.UserID, &u.OriginalName, &u.FileName, &u.StoragePath, &u.Position, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan upload: %v", common.ErrDatabase, err)
		}
		u.CreatedAt = u.CreatedAt.UTC()
		out[u.JobID] = append(out[u.JobID], u)
	}
	return out, rows.Err()
}

func (r *jobRepo) resultsFor(ctx context.Context, qr querier, ids []any) (map[uuid.UUID]*entity.AuditResult, error) {
	b := r.builder()
	q, args := b.Select(resultColumns...).From(b.Table(auditResultsTable)).Where(entsql.In("job_id", ids...)).Query()

	rows, err := qr.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list results: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*entity.AuditResult)
	for rows.Next() {
		var (
			res      entity.AuditResult
			accuracy sql.NullString
			issues   sql.NullString
			errText  sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.JobID, &accuracy, &issues, &errText, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("%w: scan result: %v", common.ErrDatabase, err)
		}
		res.Accuracy = stringPtr(accuracy)
		res.Error = stringPtr(errText)
		res.CompletedAt = res.CompletedAt.UTC()
		if issues.Valid && issues.String != "" {
			if err := json.Unmarshal([]byte(issues.String), &res.Issues); err != nil {
				return nil, fmt.Errorf("decode issues for job %s: %w", res.JobID, err)
			}
		}
		out[res.JobID] = &res
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (*entity.Job, error) {
	var (
		j       entity.Job
		status  string
		errText sql.NullString
	)
	if err := row.Scan(&j.ID, &j.UserID, &j.CaseNumber, &j.Branch, &j.Description, &j.Feature, &status, &errText, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.Status = constants.JobStatus(status)
	j.Error = stringPtr(errText)
	j.CreatedAt = j.CreatedAt.UTC()
	return &j, nil
}

func execAffected(ctx context.Context, qr querier, q string, args []any) (int64, error) {
	res, err := qr.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func statusArgs(statuses ...constants.JobStatus) []any {
	out := make([]any, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
