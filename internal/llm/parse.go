package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RawTextKey holds the unparsed reply in the fallback object.
const RawTextKey = "raw_text"

var reFence = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\s*```$")

// StripWrappers removes a surrounding markdown code fence or triple-quote
// wrapper from a model reply.
func StripWrappers(s string) string {
	s = strings.TrimSpace(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			s = strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return s
}

// ExtractFirstObject returns the first balanced {...} block in s, skipping
// braces inside JSON strings.
func ExtractFirstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// DecodeObject parses a model reply into a JSON object. It strips wrappers,
// then retries on the first {...} block, and finally returns
// {"raw_text": reply} with ok=false.
func DecodeObject(reply string) (obj map[string]any, ok bool) {
	cleaned := StripWrappers(reply)
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil && obj != nil {
		return obj, true
	}
	if block, found := ExtractFirstObject(cleaned); found {
		obj = nil
		if err := json.Unmarshal([]byte(block), &obj); err == nil && obj != nil {
			return obj, true
		}
	}
	return map[string]any{RawTextKey: reply}, false
}

// IsFallback reports whether obj is the raw-text fallback of DecodeObject.
func IsFallback(obj map[string]any) bool {
	if len(obj) != 1 {
		return false
	}
	_, ok := obj[RawTextKey].(string)
	return ok
}
