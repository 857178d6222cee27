package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lpernett/godotenv"

	"github.com/joseph-ayodele/funeral-audit/internal/bootstrap"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
)

func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := bootstrap.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage", "cmd", "runocr <file> [file...]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reader := bootstrap.NewReader(cfg.OCR, logger)
	failed := false
	for _, path := range os.Args[1:] {
		start := time.Now()
		pages, err := reader.Read(ctx, path)
		dur := time.Since(start)
		if err != nil {
			logger.Error("text recognition failed", "file", path, "error", err, "duration_ms", dur.Milliseconds())
			failed = true
			continue
		}

		for i, p := range pages {
			logger.Info("page recognized",
				"file", path,
				"page", i+1,
				"segments", len(p.Segments),
				"confidence", fmt.Sprintf("%.2f", p.AverageConfidence()),
			)
		}
		logger.Info("text recognition OK",
			"file", path,
			"pages", len(pages),
			"duration_ms", dur.Milliseconds(),
		)
		fmt.Println(document.PagesText(pages))
	}
	if failed {
		os.Exit(1)
	}
}
