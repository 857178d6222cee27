package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
)

// Engine recognizes the text on one page image.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (document.Page, error)
}

// Tesseract runs the tesseract CLI in TSV mode and groups words into lines.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &Tesseract{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (document.Page, error) {
	args := []string{imagePath, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		if ctx.Err() != nil {
			return document.Page{}, common.CollaboratorError("tesseract timed out", ctx.Err())
		}
		return document.Page{}, common.CollaboratorError("tesseract failed: "+truncate(string(errb), 512), err)
	}
	page := ParseTSV(string(out))
	if page.Empty() {
		return document.Page{}, common.RecognitionError(fmt.Sprintf("no text recognized in %s", imagePath))
	}
	t.logger.Debug("ocr.tesseract.ok", "image", imagePath, "segments", len(page.Segments), "avg_conf", page.AverageConfidence())
	return page, nil
}

// ParseTSV turns tesseract TSV output into one segment per text line, in
// reading order. A line's confidence is the mean word confidence / 100.
func ParseTSV(tsv string) document.Page {
	type lineKey struct{ page, block, par, line string }
	type acc struct {
		words []string
		sum   float64
		n     int
	}

	var (
		order []lineKey
		lines = map[lineKey]*acc{}
	)
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue // words only
		}
		word := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if word == "" || err != nil || conf < 0 {
			continue
		}
		k := lineKey{cols[1], cols[2], cols[3], cols[4]}
		a, ok := lines[k]
		if !ok {
			a = &acc{}
			lines[k] = a
			order = append(order, k)
		}
		a.words = append(a.words, word)
		a.sum += conf
		a.n++
	}

	page := document.Page{Segments: make([]document.Segment, 0, len(order))}
	for _, k := range order {
		a := lines[k]
		text := Normalize(strings.Join(a.words, " "))
		if text == "" {
			continue
		}
		page.Segments = append(page.Segments, document.Segment{
			Text:       text,
			Confidence: clamp01(a.sum / float64(a.n) / 100),
		})
	}
	return page
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
