// Package pipeline turns uploaded files into normalized documents and runs
// the selected analysis over them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/funeral-audit/internal/document"
)

// PageReader renders and recognizes one file.
type PageReader interface {
	Read(ctx context.Context, path string) ([]document.Page, error)
}

// Checkpoint re-reads persisted job state. It returns common.ErrJobCanceled
// once the job has been canceled.
type Checkpoint func(ctx context.Context) error

// File is one upload handed to the pipeline.
type File struct {
	Name string
	Path string
}

type Pipeline struct {
	reader     PageReader
	classifier *Classifier
	formatter  *Formatter
	features   *Features
	logger     *slog.Logger
}

func New(reader PageReader, classifier *Classifier, formatter *Formatter, features *Features, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		reader:     reader,
		classifier: classifier,
		formatter:  formatter,
		features:   features,
		logger:     logger,
	}
}

// StandardizeFile reads, classifies and formats one file.
func (p *Pipeline) StandardizeFile(ctx context.Context, f File) (*document.Document, error) {
	pages, err := p.reader.Read(ctx, f.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	def, err := p.classifier.Classify(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	doc := &document.Document{Source: f.Name, Definition: def, Pages: pages}
	if err := p.formatter.Format(ctx, doc); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return doc, nil
}

// Run standardizes files in order, then runs the selected feature. check is
// called after every file and before returning a completed outcome; a
// cancellation it reports turns the run into a Canceled outcome.
func (p *Pipeline) Run(ctx context.Context, selector string, files []File, check Checkpoint) Outcome {
	start := time.Now()
	feature, err := p.features.Resolve(selector)
	if err != nil {
		return Failed(err)
	}

	docs := make([]*document.Document, 0, len(files))
	for _, f := range files {
		doc, err := p.StandardizeFile(ctx, f)
		if err != nil {
			p.logger.Warn("pipeline.file.failed", "file", f.Name, "error", err)
			return Failed(err)
		}
		docs = append(docs, doc)
		if err := check(ctx); err != nil {
			return OutcomeOf(Verdict{}, err)
		}
	}

	verdict, err := feature.Run(ctx, docs)
	if err != nil {
		return Failed(err)
	}
	if err := check(ctx); err != nil {
		return OutcomeOf(Verdict{}, err)
	}
	p.logger.Info("pipeline.run.ok",
		"feature", feature.Name(),
		"files", len(files),
		"accuracy", verdict.Accuracy,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Completed(verdict)
}
