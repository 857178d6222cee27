package storage

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SecureFilename reduces a client supplied name to a flat ASCII file name:
// accents are folded, path separators and whitespace become underscores, and
// anything outside [A-Za-z0-9_.-] is dropped. The result may be empty.
func SecureFilename(name string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}
	folded = strings.NewReplacer("/", " ", "\\", " ").Replace(folded)
	joined := strings.Join(strings.Fields(folded), "_")

	var b strings.Builder
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// TokenName returns the permanent, collision resistant name for an upload:
// <uuid4 hex>_<secure filename>.
func TokenName(original string) string {
	secure := SecureFilename(original)
	if secure == "" {
		secure = "upload"
	}
	id := uuid.New()
	return hex.EncodeToString(id[:]) + "_" + secure
}
