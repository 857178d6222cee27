package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reBoxNoise   = regexp.MustCompile(`^[\s_\-|]{3,}$`)
)

// Normalize collapses noisy whitespace in one recognized line. Box-drawing
// noise lines (runs of underscores, dashes or pipes) normalize to "".
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if reBoxNoise.MatchString(s) {
		return ""
	}
	return s
}
