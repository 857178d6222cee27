package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/entity"
)

func newTestRepo(t *testing.T) JobRepository {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: "sqlite", DSN: SQLiteDSN(filepath.Join(t.TempDir(), "audit.db"))}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close(nil) })
	if err := EnsureSchema(ctx, db, nil); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewJobRepository(db, nil)
}

func newJob(user string, createdAt time.Time, files ...string) *entity.Job {
	job := &entity.Job{
		ID:        uuid.New(),
		UserID:    user,
		Branch:    "Phoenix",
		Feature:   string(constants.FeatureGeneral),
		Status:    constants.JobStatusQueued,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}
	for i, name := range files {
		job.Uploads = append(job.Uploads, entity.Upload{
			ID:           uuid.New(),
			UserID:       user,
			OriginalName: name,
			FileName:     uuid.NewString() + "_" + name,
			StoragePath:  "/tmp/" + name,
			Position:     i,
			CreatedAt:    job.CreatedAt,
		})
	}
	return job
}

func mustCreate(t *testing.T, repo JobRepository, job *entity.Job) {
	t.Helper()
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	job := newJob("u1", time.Now(), "b.pdf", "a.pdf")
	mustCreate(t, repo, job)

	got, err := repo.GetForUser(ctx, "u1", job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != constants.JobStatusQueued {
		t.Errorf("status = %s, want queued", got.Status)
	}
	if len(got.Uploads) != 2 || got.Uploads[0].OriginalName != "b.pdf" || got.Uploads[1].OriginalName != "a.pdf" {
		t.Errorf("uploads not in submission order: %+v", got.Uploads)
	}
	if got.Result != nil {
		t.Errorf("queued job has a result")
	}

	if _, err := repo.GetForUser(ctx, "someone-else", job.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("foreign get err = %v, want not found", err)
	}
}

func TestListByUserOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	older := newJob("u1", base)
	newer := newJob("u1", base.Add(time.Minute))
	tieA := newJob("u1", base.Add(2*time.Minute))
	tieB := newJob("u1", base.Add(2*time.Minute))
	other := newJob("u2", base.Add(time.Hour))
	for _, j := range []*entity.Job{older, newer, tieA, tieB, other} {
		mustCreate(t, repo, j)
	}

	jobs, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 4 {
		t.Fatalf("got %d jobs, want 4", len(jobs))
	}
	first, second := tieA, tieB
	if second.ID.String() < first.ID.String() {
		first, second = second, first
	}
	want := []uuid.UUID{first.ID, second.ID, newer.ID, older.ID}
	for i, id := range want {
		if jobs[i].ID != id {
			t.Errorf("jobs[%d] = %s, want %s", i, jobs[i].ID, id)
		}
	}
}

func TestClaimExactlyOneWinner(t *testing.T) {
	repo := newTestRepo(t)
	job := newJob("u1", time.Now(), "a.pdf")
	mustCreate(t, repo, job)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Claim(context.Background(), job.ID)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, common.ErrStateConflict) {
				t.Errorf("claim err = %v, want state conflict", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
	status, err := repo.GetStatus(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status != constants.JobStatusProcessing {
		t.Errorf("status = %s, want processing", status)
	}
}

func TestCancelTransitions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	queued := newJob("u1", time.Now())
	mustCreate(t, repo, queued)
	if err := repo.Cancel(ctx, "u1", queued.ID); err != nil {
		t.Fatalf("cancel queued: %v", err)
	}
	if err := repo.Cancel(ctx, "u1", queued.ID); !errors.Is(err, common.ErrStateConflict) {
		t.Errorf("second cancel err = %v, want conflict", err)
	}

	done := newJob("u1", time.Now())
	mustCreate(t, repo, done)
	if err := repo.Claim(ctx, done.ID); err != nil {
		t.Fatal(err)
	}
	acc := "90%"
	if _, err := repo.Finish(ctx, done.ID, TerminalOutcome{Status: constants.JobStatusCompleted, Accuracy: &acc}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := repo.Cancel(ctx, "u1", done.ID); !errors.Is(err, common.ErrStateConflict) {
		t.Errorf("cancel completed err = %v, want conflict", err)
	}
	status, _ := repo.GetStatus(ctx, done.ID)
	if status != constants.JobStatusCompleted {
		t.Errorf("status = %s, want completed", status)
	}

	if err := repo.Cancel(ctx, "u2", done.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("foreign cancel err = %v, want not found", err)
	}
}

func TestFinishAfterCancelWritesNothing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	job := newJob("u1", time.Now(), "a.pdf")
	mustCreate(t, repo, job)

	if err := repo.Claim(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.Cancel(ctx, "u1", job.ID); err != nil {
		t.Fatal(err)
	}
	acc := "100%"
	_, err := repo.Finish(ctx, job.ID, TerminalOutcome{Status: constants.JobStatusCompleted, Accuracy: &acc, Issues: []string{}})
	if !errors.Is(err, common.ErrJobCanceled) {
		t.Fatalf("finish err = %v, want ErrJobCanceled", err)
	}

	got, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != constants.JobStatusCanceled {
		t.Errorf("status = %s, want canceled", got.Status)
	}
	if got.Result != nil {
		t.Errorf("canceled job has result %+v", got.Result)
	}
}

func TestFinishPersistsResult(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ok := newJob("u1", time.Now())
	mustCreate(t, repo, ok)
	_ = repo.Claim(ctx, ok.ID)
	acc := "93%"
	if _, err := repo.Finish(ctx, ok.ID, TerminalOutcome{
		Status:   constants.JobStatusCompleted,
		Accuracy: &acc,
		Issues:   []string{"SSN missing", "date mismatch"},
	}); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.Get(ctx, ok.ID)
	if got.Result == nil || got.Result.Accuracy == nil || *got.Result.Accuracy != "93%" {
		t.Fatalf("result = %+v", got.Result)
	}
	if len(got.Result.Issues) != 2 || got.Result.Issues[1] != "date mismatch" {
		t.Errorf("issues = %v", got.Result.Issues)
	}

	bad := newJob("u1", time.Now())
	mustCreate(t, repo, bad)
	_ = repo.Claim(ctx, bad.ID)
	msg := "RECOGNITION_ERROR: no text"
	if _, err := repo.Finish(ctx, bad.ID, TerminalOutcome{Status: constants.JobStatusFailed, Error: &msg}); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.Get(ctx, bad.ID)
	if got.Status != constants.JobStatusFailed || got.Error == nil || *got.Error != msg {
		t.Errorf("failed job = %+v", got)
	}
	if got.Result == nil || got.Result.Accuracy != nil || got.Result.Issues != nil {
		t.Errorf("failure result should carry only the error: %+v", got.Result)
	}

	if _, err := repo.Finish(ctx, bad.ID, TerminalOutcome{Status: constants.JobStatusCompleted}); !errors.Is(err, common.ErrStateConflict) {
		t.Errorf("second finish err = %v, want conflict", err)
	}
}

func TestDeleteOnlyTerminal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := newJob("u1", time.Now(), "a.pdf", "b.pdf")
	mustCreate(t, repo, job)

	if _, err := repo.Delete(ctx, "u1", job.ID); !errors.Is(err, common.ErrStateConflict) {
		t.Fatalf("delete queued err = %v, want conflict", err)
	}
	_ = repo.Claim(ctx, job.ID)
	if _, err := repo.Delete(ctx, "u1", job.ID); !errors.Is(err, common.ErrStateConflict) {
		t.Fatalf("delete processing err = %v, want conflict", err)
	}
	got, err := repo.Get(ctx, job.ID)
	if err != nil || len(got.Uploads) != 2 {
		t.Fatalf("job should be intact: %+v, %v", got, err)
	}

	_ = repo.Cancel(ctx, "u1", job.ID)
	uploads, err := repo.Delete(ctx, "u1", job.ID)
	if err != nil {
		t.Fatalf("delete canceled: %v", err)
	}
	if len(uploads) != 2 {
		t.Errorf("returned %d uploads, want 2", len(uploads))
	}
	if _, err := repo.Get(ctx, job.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("get after delete err = %v, want not found", err)
	}
	if _, err := repo.Delete(ctx, "u1", job.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}

func TestPurgeAndCounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newJob("u1", time.Now(), "a.pdf")
	b := newJob("u1", time.Now())
	mustCreate(t, repo, a)
	mustCreate(t, repo, b)
	_ = repo.Claim(ctx, b.ID)

	uploads, err := repo.Purge(ctx, a.ID)
	if err != nil || len(uploads) != 1 {
		t.Fatalf("purge = %v, %v", uploads, err)
	}
	if _, err := repo.Purge(ctx, b.ID); !errors.Is(err, common.ErrStateConflict) {
		t.Errorf("purge processing err = %v, want conflict", err)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[constants.JobStatusProcessing] != 1 || counts[constants.JobStatusQueued] != 0 {
		t.Errorf("counts = %v", counts)
	}
}
