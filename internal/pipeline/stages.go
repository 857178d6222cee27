package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
	"github.com/joseph-ayodele/funeral-audit/internal/llm"
)

// Classifier maps OCR pages to a catalog definition.
type Classifier struct {
	gen     llm.TextGenerator
	catalog *document.Catalog
	logger  *slog.Logger
}

func NewClassifier(gen llm.TextGenerator, catalog *document.Catalog, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gen: gen, catalog: catalog, logger: logger}
}

// Classify asks the generator for a label and resolves it against the
// catalog. An empty or unknown label is an UnknownDocumentTypeError.
func (c *Classifier) Classify(ctx context.Context, pages []document.Page) (document.Definition, error) {
	prompt := buildClassificationPrompt(c.catalog.Labels(), document.PagesText(pages))
	reply, err := c.gen.Text(ctx, prompt)
	if err != nil {
		return document.Definition{}, err
	}
	def, err := c.catalog.Lookup(reply)
	if err != nil {
		c.logger.Warn("pipeline.classify.unknown", "reply", reply)
		return document.Definition{}, err
	}
	c.logger.Info("pipeline.classify.ok", "type", def.Type)
	return def, nil
}

// Formatter fills a document's normalized field list.
type Formatter struct {
	gen    llm.TextGenerator
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewFormatter(gen llm.TextGenerator, logger *slog.Logger) (*Formatter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := llm.CompileSchema(llm.FormattedDocumentSchema())
	if err != nil {
		return nil, fmt.Errorf("formatter schema: %w", err)
	}
	return &Formatter{gen: gen, schema: schema, logger: logger}, nil
}

// Format requests the standard fields for doc and normalizes the reply.
// A reply with no recoverable object fails.
func (f *Formatter) Format(ctx context.Context, doc *document.Document) error {
	obj, err := f.gen.JSON(ctx, buildFormattingPrompt(doc.Definition, doc.Text()))
	if err != nil {
		return err
	}
	if llm.IsFallback(obj) {
		return common.CollaboratorError("formatter returned no structured output", fmt.Errorf("unparsable reply for %s", doc.Definition.Type))
	}
	if err := llm.ValidateObject(f.schema, obj); err != nil {
		return common.CollaboratorError("formatter reply has the wrong shape", err)
	}

	values := make(map[string]string, len(obj))
	for k, v := range obj {
		values[k] = stringValue(v)
	}
	doc.Normalize(values)

	filled, total := doc.Count()
	f.logger.Info("pipeline.format.ok", "type", doc.Definition.Type, "filled", filled, "total", total)
	return nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Verdict is the result of an audit or comparison.
type Verdict struct {
	Accuracy string
	Issues   []string
}

// Auditor runs the two analyses over normalized documents.
type Auditor struct {
	gen    llm.TextGenerator
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewAuditor(gen llm.TextGenerator, logger *slog.Logger) (*Auditor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := llm.CompileSchema(llm.AuditReplySchema())
	if err != nil {
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return &Auditor{gen: gen, schema: schema, logger: logger}, nil
}

// General audits one normalized document.
func (a *Auditor) General(ctx context.Context, doc *document.Document) (Verdict, error) {
	start := time.Now()
	obj, err := a.gen.JSON(ctx, buildGeneralAuditPrompt(doc))
	if err != nil {
		return Verdict{}, err
	}
	v, err := a.verdict(obj)
	if err != nil {
		return Verdict{}, err
	}
	a.logger.Info("pipeline.audit.ok",
		"type", doc.Definition.Type,
		"accuracy", v.Accuracy,
		"issues", len(v.Issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return v, nil
}

// Compare cross-checks two normalized documents.
func (a *Auditor) Compare(ctx context.Context, first, second *document.Document) (Verdict, error) {
	start := time.Now()
	obj, err := a.gen.JSON(ctx, buildComparisonPrompt(first, second))
	if err != nil {
		return Verdict{}, err
	}
	v, err := a.verdict(obj)
	if err != nil {
		return Verdict{}, err
	}
	a.logger.Info("pipeline.compare.ok",
		"first", first.Definition.Type,
		"second", second.Definition.Type,
		"accuracy", v.Accuracy,
		"issues", len(v.Issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return v, nil
}

func (a *Auditor) verdict(obj map[string]any) (Verdict, error) {
	if llm.IsFallback(obj) {
		return Verdict{}, common.CollaboratorError("auditor returned no structured output", fmt.Errorf("unparsable reply"))
	}
	if changed := llm.SanitizeAuditReply(obj); len(changed) > 0 {
		a.logger.Debug("pipeline.audit.sanitized", "keys", changed)
	}
	if err := llm.ValidateObject(a.schema, obj); err != nil {
		return Verdict{}, common.CollaboratorError("auditor reply has the wrong shape", err)
	}
	acc, err := NormalizeAccuracy(obj["accuracy"])
	if err != nil {
		return Verdict{}, err
	}
	raw, _ := obj["issues"].([]any)
	issues := make([]string, 0, len(raw))
	for _, it := range raw {
		if s, ok := it.(string); ok {
			issues = append(issues, s)
		}
	}
	return Verdict{Accuracy: acc, Issues: issues}, nil
}
