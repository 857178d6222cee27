//go:build !gosseract

package ocr

import "log/slog"

// NewEngine returns the engine compiled into this binary: the tesseract CLI.
func NewEngine(cfg Config, logger *slog.Logger) Engine {
	return NewTesseract(cfg, nil, logger)
}
