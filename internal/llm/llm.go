package llm

import "context"

// TextGenerator is the text-generation collaborator every stage talks to.
// JSON never fails on unparsable output: it returns the raw-text fallback
// object instead (see DecodeObject). Transport failures and timeouts are
// returned as common.CollaboratorError.
type TextGenerator interface {
	Name() string
	Text(ctx context.Context, prompt string) (string, error)
	JSON(ctx context.Context, prompt string) (map[string]any, error)
}
