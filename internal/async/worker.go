package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/entity"
	"github.com/joseph-ayodele/funeral-audit/internal/notify"
	"github.com/joseph-ayodele/funeral-audit/internal/pipeline"
	"github.com/joseph-ayodele/funeral-audit/internal/repository"
	"github.com/joseph-ayodele/funeral-audit/internal/storage"
)

// Runner executes the document pipeline for one claimed job.
type Runner interface {
	Run(ctx context.Context, selector string, files []pipeline.File, check pipeline.Checkpoint) pipeline.Outcome
}

// finishTimeout bounds the terminal write, which runs even after the
// processing deadline has passed.
const finishTimeout = 30 * time.Second

type WorkerPool struct {
	queue    Queue
	jobs     repository.JobRepository
	runner   Runner
	files    storage.Storage
	notifier notify.Notifier
	logger   *slog.Logger

	workers        int
	dequeueTimeout time.Duration
	processTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*WorkerPool)

func WithWorkers(n int) Option {
	return func(p *WorkerPool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithDequeueTimeout(d time.Duration) Option {
	return func(p *WorkerPool) {
		if d > 0 {
			p.dequeueTimeout = d
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(p *WorkerPool) {
		if d > 0 {
			p.processTimeout = d
		}
	}
}

func NewWorkerPool(queue Queue, jobs repository.JobRepository, runner Runner, files storage.Storage, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	p := &WorkerPool{
		queue:          queue,
		jobs:           jobs,
		runner:         runner,
		files:          files,
		notifier:       notifier,
		logger:         logger,
		workers:        2,
		dequeueTimeout: time.Second,
		processTimeout: 10 * time.Minute,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start launches the workers. They stop dequeuing when ctx ends or
// Shutdown is called.
func (p *WorkerPool) Start(ctx context.Context) {
	p.once.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Info("worker.started", "worker_id", workerID)
				p.loop(loopCtx, workerID)
				p.logger.Info("worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (p *WorkerPool) loop(ctx context.Context, workerID int) {
	for ctx.Err() == nil {
		id, ok, err := p.queue.Dequeue(ctx, p.dequeueTimeout)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			p.logger.Error("worker.dequeue.error", "worker_id", workerID, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.dequeueTimeout):
			}
			continue
		}
		if !ok {
			continue
		}
		p.Process(id, workerID)
	}
}

// Shutdown stops dequeuing and waits for in-flight jobs or ctx expiry.
func (p *WorkerPool) Shutdown(ctx context.Context) {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("worker.shutdown.interrupted")
	case <-done:
		p.logger.Info("worker.shutdown.complete")
	}
}

// Process runs one dequeued job to its terminal state. In-flight work is
// bounded by the process timeout and not by the pool's context.
func (p *WorkerPool) Process(id uuid.UUID, workerID int) {
	ctx, cancel := common.WithTimeout(context.Background(), p.processTimeout)
	defer cancel()
	log := p.logger.With("worker_id", workerID, "job_id", id)

	job, err := p.jobs.Get(ctx, id)
	if err != nil {
		log.Warn("worker.job.discarded", "reason", "lookup failed", "error", err)
		return
	}
	if job.Status != constants.JobStatusQueued {
		log.Info("worker.job.discarded", "reason", "not queued", "status", job.Status)
		return
	}
	if err := p.jobs.Claim(ctx, id); err != nil {
		log.Info("worker.job.discarded", "reason", "claim lost", "error", err)
		return
	}
	job.Status = constants.JobStatusProcessing
	log.Info("worker.job.claimed", "feature", job.Feature, "files", len(job.Uploads))
	p.notifier.Notify(ctx, notify.JobEvent(constants.EventJobProgress, job))

	start := time.Now()
	outcome := p.run(ctx, job)

	finishCtx, cancelFinish := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancelFinish()
	p.finish(finishCtx, log, job, outcome, time.Since(start))
}

func (p *WorkerPool) run(ctx context.Context, job *entity.Job) (out pipeline.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = pipeline.Failed(fmt.Errorf("%w: panic: %v", common.ErrInternal, r))
		}
	}()

	files := make([]pipeline.File, 0, len(job.Uploads))
	for _, u := range job.Uploads {
		path, release, err := p.files.Localize(ctx, u.StoragePath)
		if err != nil {
			return pipeline.Failed(fmt.Errorf("open %s: %w", u.OriginalName, err))
		}
		defer release()
		files = append(files, pipeline.File{Name: u.OriginalName, Path: path})
	}

	check := func(ctx context.Context) error {
		status, err := p.jobs.GetStatus(ctx, job.ID)
		if err != nil {
			return err
		}
		if status == constants.JobStatusCanceled {
			return common.ErrJobCanceled
		}
		return nil
	}
	return p.runner.Run(ctx, job.Feature, files, check)
}

func (p *WorkerPool) finish(ctx context.Context, log *slog.Logger, job *entity.Job, outcome pipeline.Outcome, elapsed time.Duration) {
	if outcome.Status == constants.JobStatusCanceled {
		log.Info("worker.job.canceled", "elapsed_ms", elapsed.Milliseconds())
		return
	}

	out := repository.TerminalOutcome{Status: outcome.Status, CompletedAt: time.Now().UTC()}
	if outcome.Status == constants.JobStatusCompleted {
		acc := outcome.Verdict.Accuracy
		out.Accuracy = &acc
		out.Issues = outcome.Verdict.Issues
		if out.Issues == nil {
			out.Issues = []string{}
		}
	} else {
		msg := outcome.ErrorText()
		out.Error = &msg
	}

	result, err := p.jobs.Finish(ctx, job.ID, out)
	switch {
	case errors.Is(err, common.ErrJobCanceled):
		log.Info("worker.job.canceled", "reason", "canceled before terminal write", "elapsed_ms", elapsed.Milliseconds())
		return
	case err != nil:
		log.Error("worker.job.finish_error", "status", outcome.Status, "error", err)
		return
	}

	job.Status = outcome.Status
	job.Error = out.Error
	job.Result = result
	if outcome.Status == constants.JobStatusCompleted {
		log.Info("worker.job.completed",
			"accuracy", outcome.Verdict.Accuracy,
			"issues", len(outcome.Verdict.Issues),
			"elapsed_ms", elapsed.Milliseconds(),
		)
		p.notifier.Notify(ctx, notify.JobEvent(constants.EventJobUpdate, job))
		return
	}
	log.Warn("worker.job.failed",
		"code", common.CodeOf(outcome.Err),
		"error", outcome.ErrorText(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	p.notifier.Notify(ctx, notify.JobEvent(constants.EventJobFailed, job))
}
