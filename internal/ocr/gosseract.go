//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
)

// Gosseract recognizes pages in-process through libtesseract. Each call
// uses its own client; clients are not safe for concurrent use.
type Gosseract struct {
	cfg    Config
	logger *slog.Logger
}

func NewGosseract(cfg Config, logger *slog.Logger) *Gosseract {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gosseract{cfg: cfg.withDefaults(), logger: logger}
}

func (g *Gosseract) Recognize(ctx context.Context, imagePath string) (document.Page, error) {
	if err := ctx.Err(); err != nil {
		return document.Page{}, common.CollaboratorError("ocr canceled", err)
	}
	c := gosseract.NewClient()
	defer c.Close()

	if g.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(g.cfg.TessdataDir); err != nil {
			return document.Page{}, fmt.Errorf("set tessdata: %w", err)
		}
	}
	if err := c.SetLanguage(g.cfg.TesseractLang); err != nil {
		return document.Page{}, fmt.Errorf("set language: %w", err)
	}
	if g.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM)); err != nil {
			return document.Page{}, fmt.Errorf("set psm: %w", err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return document.Page{}, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return document.Page{}, common.CollaboratorError("gosseract failed", err)
	}
	page := document.Page{Segments: make([]document.Segment, 0, len(boxes))}
	for _, b := range boxes {
		text := Normalize(b.Word)
		if text == "" {
			continue
		}
		page.Segments = append(page.Segments, document.Segment{Text: text, Confidence: clamp01(b.Confidence / 100)})
	}
	if page.Empty() {
		return document.Page{}, common.RecognitionError(fmt.Sprintf("no text recognized in %s", imagePath))
	}
	g.logger.Debug("ocr.gosseract.ok", "image", imagePath, "segments", len(page.Segments))
	return page, nil
}
