package llm

// AuditReplySchema is the shape general audits and comparisons must return.
// accuracy may arrive as "93%", "93.4 %" or a bare number; it is normalized
// after validation.
func AuditReplySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"issues": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"accuracy": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string", "pattern": `^\s*\d{1,3}(\.\d+)?\s*%?\s*$`},
					map[string]any{"type": "number", "minimum": 0, "maximum": 100},
				},
			},
		},
		"required": []string{"issues", "accuracy"},
	}
}

// FormattedDocumentSchema accepts an object of string, number or null values.
// Keys are not constrained here; the formatter keeps only standard fields.
func FormattedDocumentSchema() map[string]any {
	return map[string]any{
		"type":          "object",
		"minProperties": 1,
		"additionalProperties": map[string]any{
			"type": []string{"string", "number", "boolean", "null"},
		},
	}
}
