package llm

import (
	"fmt"
	"strings"
)

// SanitizeAuditReply coerces near-miss audit replies into the schema shape:
// a null or missing issues list becomes [], a single issue string becomes a
// one-element list, and non-string issues are stringified. It returns the
// keys it touched.
func SanitizeAuditReply(obj map[string]any) []string {
	var changed []string
	switch v := obj["issues"].(type) {
	case nil:
		obj["issues"] = []any{}
		changed = append(changed, "issues")
	case string:
		if s := strings.TrimSpace(v); s == "" {
			obj["issues"] = []any{}
		} else {
			obj["issues"] = []any{s}
		}
		changed = append(changed, "issues")
	case []any:
		out := make([]any, 0, len(v))
		touched := false
		for _, it := range v {
			switch t := it.(type) {
			case string:
				out = append(out, t)
			case nil:
				touched = true
			default:
				out = append(out, fmt.Sprint(t))
				touched = true
			}
		}
		if touched {
			obj["issues"] = out
			changed = append(changed, "issues")
		}
	}
	if s, ok := obj["accuracy"].(string); ok && s != strings.TrimSpace(s) {
		obj["accuracy"] = strings.TrimSpace(s)
		changed = append(changed, "accuracy")
	}
	return changed
}
