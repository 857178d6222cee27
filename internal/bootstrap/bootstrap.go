// Package bootstrap builds the configured collaborators shared by the
// binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/funeral-audit/internal/async"
	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
	"github.com/joseph-ayodele/funeral-audit/internal/llm"
	"github.com/joseph-ayodele/funeral-audit/internal/llm/gemini"
	"github.com/joseph-ayodele/funeral-audit/internal/llm/openai"
	"github.com/joseph-ayodele/funeral-audit/internal/ocr"
	"github.com/joseph-ayodele/funeral-audit/internal/pipeline"
	"github.com/joseph-ayodele/funeral-audit/internal/storage"
)

func NewLogger(cfg common.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func NewStorage(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (storage.Storage, error) {
	if cfg.Backend == "minio" {
		return storage.NewMinIO(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
	}
	return storage.NewLocal(cfg.UploadDir, logger)
}

// NewQueue prefetches one delivery per worker on the AMQP backend.
func NewQueue(cfg common.QueueConfig, workers int, logger *slog.Logger) (async.Queue, error) {
	if cfg.Backend == "amqp" {
		return async.NewAMQPQueue(cfg.AMQPURL, cfg.QueueName, workers, logger)
	}
	return async.NewMemoryQueue(cfg.Size, logger), nil
}

func NewGenerator(cfg common.LLMConfig, logger *slog.Logger) (llm.TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.CallTimeout,
		}, logger), nil
	case "gemini":
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			BaseURL:     cfg.GeminiBaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.CallTimeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func NewReader(cfg common.OCRConfig, logger *slog.Logger) *ocr.Reader {
	ocrCfg := ocr.Config{
		Pdftoppm:      cfg.Pdftoppm,
		Tesseract:     cfg.Tesseract,
		TesseractLang: cfg.TesseractLang,
		TessdataDir:   cfg.TessdataDir,
		DPI:           cfg.DPI,
		MaxPages:      cfg.MaxPages,
		PSM:           cfg.PSM,
	}
	return ocr.NewReader(ocr.NewConverter(ocrCfg, nil, logger), ocr.NewEngine(ocrCfg, logger), logger)
}

// NewPipeline wires OCR, the embedded document catalog and gen into the
// document pipeline.
func NewPipeline(cfg common.OCRConfig, gen llm.TextGenerator, logger *slog.Logger) (*pipeline.Pipeline, error) {
	catalog, err := document.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load document catalog: %w", err)
	}
	formatter, err := pipeline.NewFormatter(gen, logger)
	if err != nil {
		return nil, err
	}
	auditor, err := pipeline.NewAuditor(gen, logger)
	if err != nil {
		return nil, err
	}
	classifier := pipeline.NewClassifier(gen, catalog, logger)
	return pipeline.New(NewReader(cfg, logger), classifier, formatter, pipeline.NewFeatures(auditor), logger), nil
}
