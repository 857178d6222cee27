//go:build gosseract

package ocr

import "log/slog"

// NewEngine returns the engine compiled into this binary: libtesseract via gosseract.
func NewEngine(cfg Config, logger *slog.Logger) Engine {
	return NewGosseract(cfg, logger)
}
