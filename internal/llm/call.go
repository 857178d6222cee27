package llm

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
)

// CallError converts a provider failure into a collaborator error, naming
// timeouts explicitly.
func CallError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.CollaboratorError(provider+" call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return common.CollaboratorError(provider+" call canceled", err)
	}
	return common.CollaboratorError(provider+" call failed", err)
}
