package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lpernett/godotenv"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/async"
	"github.com/joseph-ayodele/funeral-audit/internal/bootstrap"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/dispatch"
	"github.com/joseph-ayodele/funeral-audit/internal/entity"
	"github.com/joseph-ayodele/funeral-audit/internal/export"
	"github.com/joseph-ayodele/funeral-audit/internal/ingest"
	"github.com/joseph-ayodele/funeral-audit/internal/notify"
	"github.com/joseph-ayodele/funeral-audit/internal/repository"
	"github.com/joseph-ayodele/funeral-audit/internal/server"
	"github.com/joseph-ayodele/funeral-audit/internal/storage"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		feature = flag.String("feature", string(constants.FeatureGeneral), "general or cross-check")
		branch  = flag.String("branch", "batch", "branch recorded on the job")
		caseNo  = flag.String("case", "", "case number recorded on the job")
		dir     = flag.String("dir", "", "audit every supported file under this directory")
		out     = flag.String("out", "", "write the audit to this XLSX file (optional)")
		timeout = flag.Duration("timeout", 10*time.Minute, "give up waiting after this long")
	)
	flag.Parse()
	paths := flag.Args()

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := bootstrap.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if *dir != "" {
		found, stats, err := ingest.CollectDirectory(*dir, true)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		logger.Info("directory scanned", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		printError("usage: audit-batch [-feature general|cross-check] [-dir DIR] [-out audits.xlsx] [FILE...]\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	view, data, err := audit(ctx, cfg, logger, paths, dispatch.SubmitRequest{
		UserID:     "batch",
		CaseNumber: *caseNo,
		Branch:     *branch,
		Feature:    *feature,
	})
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(view)

	if *out != "" {
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			printError("Error: write %s: %v\n", *out, err)
			os.Exit(1)
		}
		logger.Info("audit exported", "path", *out)
	}
	if view.Status != string(constants.JobStatusCompleted) {
		os.Exit(1)
	}
}

// audit runs one job through an in-process stack backed by a throwaway
// SQLite database and upload directory.
func audit(ctx context.Context, cfg *common.Config, logger *slog.Logger, paths []string, req dispatch.SubmitRequest) (entity.JobView, []byte, error) {
	work, err := os.MkdirTemp("", "audit-batch-*")
	if err != nil {
		return entity.JobView{}, nil, err
	}
	defer os.RemoveAll(work)

	db, err := server.ConnectDB(ctx, common.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(work, "audit.db")}, logger)
	if err != nil {
		return entity.JobView{}, nil, err
	}
	defer db.Close(logger)
	jobs := repository.NewJobRepository(db, logger)

	files, err := storage.NewLocal(filepath.Join(work, "uploads"), logger)
	if err != nil {
		return entity.JobView{}, nil, err
	}
	gen, err := bootstrap.NewGenerator(cfg.LLM, logger)
	if err != nil {
		return entity.JobView{}, nil, err
	}
	runner, err := bootstrap.NewPipeline(cfg.OCR, gen, logger)
	if err != nil {
		return entity.JobView{}, nil, err
	}

	hub := notify.NewHub(8, logger)
	sub := hub.Subscribe(req.UserID)
	defer sub.Close()

	queue := async.NewMemoryQueue(1, logger)
	defer queue.Close()
	pool := async.NewWorkerPool(queue, jobs, runner, files, hub, logger,
		async.WithWorkers(1),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
	)
	pool.Start(ctx)
	defer pool.Shutdown(context.Background())

	for _, p := range paths {
		path := p
		st, err := os.Stat(path)
		if err != nil {
			return entity.JobView{}, nil, err
		}
		req.Files = append(req.Files, dispatch.FileInput{
			Name: filepath.Base(path),
			Size: st.Size(),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	d := dispatch.New(jobs, queue, files, hub, logger)
	id, err := d.Submit(ctx, req)
	if err != nil {
		return entity.JobView{}, nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return entity.JobView{}, nil, fmt.Errorf("waiting for job %s: %w", id, ctx.Err())
		case ev := <-sub.C:
			if ev.Data.ID != id.String() {
				continue
			}
			if ev.Name != constants.EventJobUpdate && ev.Name != constants.EventJobFailed {
				continue
			}
			data, err := export.NewService(jobs, logger).ExportJobsXLSX(ctx, req.UserID)
			if err != nil {
				return entity.JobView{}, nil, err
			}
			return ev.Data, data, nil
		}
	}
}
