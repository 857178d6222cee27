package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
)

// PageSet is the ordered list of page images rendered from one upload.
type PageSet struct {
	Images []string
	tmpDir string
}

// Cleanup removes any temporary images. Safe on a nil PageSet.
func (p *PageSet) Cleanup() {
	if p == nil || p.tmpDir == "" {
		return
	}
	_ = os.RemoveAll(p.tmpDir)
}

// Converter turns an upload into page images tesseract can read.
type Converter struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewConverter(cfg Config, runner Runner, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &Converter{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// Render picks a strategy by file extension. PDFs are rasterized up to
// MaxPages; PNG and JPEG pass through; TIFF, BMP and WebP are re-encoded.
func (c *Converter) Render(ctx context.Context, path string) (*PageSet, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	switch {
	case constants.MapExtToFormat(ext) == constants.PDF:
		return c.renderPDF(ctx, path)
	case constants.NeedsTranscode(ext):
		return c.transcode(path, ext)
	case constants.MapExtToFormat(ext) == constants.IMAGE:
		return &PageSet{Images: []string{path}}, nil
	default:
		c.logger.Error("ocr.render.unsupported", "path", path, "ext", ext)
		return nil, common.InputError(fmt.Sprintf("unsupported file type %q", ext))
	}
}

func (c *Converter) renderPDF(ctx context.Context, path string) (*PageSet, error) {
	tmpDir, err := os.MkdirTemp("", "audit-pp-*")
	if err != nil {
		return nil, err
	}
	ps := &PageSet{tmpDir: tmpDir}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png -f 1 -l N <in.pdf> <tmp/page>
	_, errb, err := c.runner.Run(ctx, c.cfg.Pdftoppm,
		"-r", strconv.Itoa(c.cfg.DPI), "-png",
		"-f", "1", "-l", strconv.Itoa(c.cfg.MaxPages),
		path, prefix)
	if err != nil {
		ps.Cleanup()
		return nil, common.CollaboratorError("pdftoppm failed: "+truncate(string(errb), 512), err)
	}

	// pdftoppm zero-pads page numbers to a common width, so a lexical sort
	// is page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > c.cfg.MaxPages {
		matches = matches[:c.cfg.MaxPages]
	}
	if len(matches) == 0 {
		ps.Cleanup()
		return nil, common.RecognitionError("pdf rendered no pages")
	}
	ps.Images = matches
	c.logger.Debug("ocr.render.pdf", "path", path, "pages", len(matches), "dpi", c.cfg.DPI)
	return ps, nil
}

func (c *Converter) transcode(path, ext string) (*PageSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := decodeImage(f, ext)
	if err != nil {
		return nil, common.InputError(fmt.Sprintf("decode %s image: %v", ext, err))
	}

	tmpDir, err := os.MkdirTemp("", "audit-img-*")
	if err != nil {
		return nil, err
	}
	ps := &PageSet{tmpDir: tmpDir}
	out := filepath.Join(tmpDir, "page-1.png")
	dst, err := os.Create(out)
	if err != nil {
		ps.Cleanup()
		return nil, err
	}
	if err := png.Encode(dst, img); err != nil {
		_ = dst.Close()
		ps.Cleanup()
		return nil, fmt.Errorf("encode png: %w", err)
	}
	if err := dst.Close(); err != nil {
		ps.Cleanup()
		return nil, err
	}
	ps.Images = []string{out}
	c.logger.Debug("ocr.render.transcoded", "path", path, "from", ext)
	return ps, nil
}

func decodeImage(r io.Reader, ext string) (image.Image, error) {
	switch ext {
	case "tif", "tiff":
		return tiff.Decode(r)
	case "bmp":
		return bmp.Decode(r)
	case "webp":
		return webp.Decode(r)
	}
	return nil, fmt.Errorf("no decoder for %q", ext)
}
