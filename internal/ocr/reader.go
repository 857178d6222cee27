package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
)

// Reader is the OCR adapter the pipeline uses: file in, ordered pages out.
type Reader struct {
	converter *Converter
	engine    Engine
	logger    *slog.Logger
}

func NewReader(converter *Converter, engine Engine, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{converter: converter, engine: engine, logger: logger}
}

// Read renders path and recognizes every page in order. Any page without
// text fails the whole file.
func (r *Reader) Read(ctx context.Context, path string) ([]document.Page, error) {
	start := time.Now()
	set, err := r.converter.Render(ctx, path)
	if err != nil {
		return nil, err
	}
	defer set.Cleanup()
	if len(set.Images) == 0 {
		return nil, common.RecognitionError(fmt.Sprintf("no pages rendered from %s", filepath.Base(path)))
	}

	pages := make([]document.Page, 0, len(set.Images))
	for i, img := range set.Images {
		page, err := r.engine.Recognize(ctx, img)
		if err != nil {
			r.logger.Warn("ocr.page.failed", "path", path, "page", i+1, "error", err)
			return nil, err
		}
		pages = append(pages, page)
	}

	var conf float64
	for _, p := range pages {
		conf += p.AverageConfidence()
	}
	r.logger.Info("ocr.read.ok",
		"path", path,
		"pages", len(pages),
		"avg_conf", conf/float64(len(pages)),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}
