package dispatch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/async"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/notify"
	"github.com/joseph-ayodele/funeral-audit/internal/repository"
	"github.com/joseph-ayodele/funeral-audit/internal/storage"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, uuid.UUID) error { return errors.New("broker down") }
func (failingQueue) Dequeue(context.Context, time.Duration) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}
func (failingQueue) Close() error { return nil }

type env struct {
	d         *Dispatcher
	repo      repository.JobRepository
	queue     *async.MemoryQueue
	rec       *recorder
	uploadDir string
}

func newEnv(t *testing.T, q async.Queue) *env {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: repository.SQLiteDSN(filepath.Join(dir, "audit.db"))}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close(nil) })
	if err := repository.EnsureSchema(ctx, db, nil); err != nil {
		t.Fatal(err)
	}
	uploadDir := filepath.Join(dir, "uploads")
	store, err := storage.NewLocal(uploadDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := &env{repo: repository.NewJobRepository(db, nil), rec: &recorder{}, uploadDir: uploadDir}
	if q == nil {
		e.queue = async.NewMemoryQueue(16, nil)
		q = e.queue
	}
	e.d = New(e.repo, q, store, e.rec, nil)
	return e
}

func file(name, body string) FileInput {
	return FileInput{
		Name: name,
		Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func (e *env) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, en := range entries {
		names = append(names, en.Name())
	}
	return names
}

func TestSubmitQueuesJob(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	id, err := e.d.Submit(ctx, SubmitRequest{
		UserID:     "u1",
		CaseNumber: "C-1",
		Branch:     "Tempe",
		Feature:    "general",
		Files:      []FileInput{file("DRW scan.pdf", "%PDF"), file("", "skipped")},
	})
	if err != nil {
		t.Fatal(err)
	}

	job, err := e.d.Get(ctx, "u1", id)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != constants.JobStatusQueued || len(job.Uploads) != 1 {
		t.Fatalf("job = %+v", job)
	}
	if !strings.HasSuffix(job.Uploads[0].FileName, "_DRW_scan.pdf") {
		t.Errorf("token name = %s", job.Uploads[0].FileName)
	}
	if got := e.storedFiles(t); len(got) != 1 {
		t.Errorf("stored files = %v", got)
	}
	if e.queue.Len() != 1 {
		t.Errorf("queue len = %d", e.queue.Len())
	}
	if len(e.rec.events) != 1 || e.rec.events[0].Name != constants.EventNewJob || e.rec.events[0].Data.Status != "queued" {
		t.Errorf("events = %+v", e.rec.events)
	}
}

func TestSubmitValidation(t *testing.T) {
	e := newEnv(t, nil)
	cases := []SubmitRequest{
		{UserID: "u1", Feature: "general", Files: []FileInput{file("a.pdf", "x")}},
		{UserID: "u1", Branch: "B", Files: []FileInput{file("a.pdf", "x")}},
		{UserID: "u1", Branch: "B", Feature: "general"},
		{UserID: "u1", Branch: "B", Feature: "general", Files: []FileInput{file(" ", "x")}},
		{Branch: "B", Feature: "general", Files: []FileInput{file("a.pdf", "x")}},
	}
	for i, req := range cases {
		if _, err := e.d.Submit(context.Background(), req); !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("case %d: err = %v, want input error", i, err)
		}
	}
	if e.queue.Len() != 0 || len(e.storedFiles(t)) != 0 {
		t.Error("rejected submission left state behind")
	}
}

func TestSubmitEnqueueFailurePurges(t *testing.T) {
	e := newEnv(t, failingQueue{})
	_, err := e.d.Submit(context.Background(), SubmitRequest{
		UserID: "u1", Branch: "B", Feature: "general", Files: []FileInput{file("a.pdf", "x")},
	})
	if err == nil {
		t.Fatal("expected enqueue error")
	}
	jobs, _ := e.d.Query(context.Background(), "u1")
	if len(jobs) != 0 {
		t.Errorf("job survived failed enqueue: %+v", jobs)
	}
	if got := e.storedFiles(t); len(got) != 0 {
		t.Errorf("files survived failed enqueue: %v", got)
	}
}

func TestCancelAndDelete(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id, err := e.d.Submit(ctx, SubmitRequest{
		UserID: "u1", Branch: "B", Feature: "cross-check",
		Files: []FileInput{file("a.pdf", "x"), file("b.pdf", "y")},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.d.Delete(ctx, "u1", id); !errors.Is(err, common.ErrStateConflict) {
		t.Fatalf("delete queued err = %v", err)
	}
	if len(e.storedFiles(t)) != 2 {
		t.Fatal("files touched by rejected delete")
	}

	if _, err := e.d.Cancel(ctx, "intruder", id); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("foreign cancel err = %v", err)
	}
	job, err := e.d.Cancel(ctx, "u1", id)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != constants.JobStatusCanceled {
		t.Errorf("status = %s", job.Status)
	}
	last := e.rec.events[len(e.rec.events)-1]
	if last.Name != constants.EventJobUpdate || last.Data.Status != "canceled" {
		t.Errorf("last event = %+v", last)
	}
	if _, err := e.d.Cancel(ctx, "u1", id); !errors.Is(err, common.ErrStateConflict) {
		t.Errorf("second cancel err = %v", err)
	}

	if err := e.d.Delete(ctx, "u1", id); err != nil {
		t.Fatal(err)
	}
	if got := e.storedFiles(t); len(got) != 0 {
		t.Errorf("files left after delete: %v", got)
	}
	if _, err := e.d.Get(ctx, "u1", id); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
}

func TestQueryNewestFirst(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := e.d.Submit(ctx, SubmitRequest{UserID: "u1", Branch: "B", Feature: "general", Files: []FileInput{file("a.pdf", "x")}})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := e.d.Submit(ctx, SubmitRequest{UserID: "u2", Branch: "B", Feature: "general", Files: []FileInput{file("a.pdf", "x")}}); err != nil {
		t.Fatal(err)
	}

	jobs, err := e.d.Query(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 || jobs[0].ID != ids[2] || jobs[2].ID != ids[0] {
		t.Errorf("order = %v", jobs)
	}
}
