package constants

import "strings"

// Feature selects the analysis a job runs once its documents are normalized.
type Feature string

const (
	FeatureGeneral    Feature = "general"
	FeatureCrossCheck Feature = "cross-check"
)

var allFeatures = []Feature{FeatureGeneral, FeatureCrossCheck}

// ParseFeature canonicalizes a submitted selector. The boolean is false for
// anything outside the known set; callers decide how to fail.
func ParseFeature(input string) (Feature, bool) {
	normalized := Feature(strings.ToLower(strings.TrimSpace(input)))
	for _, f := range allFeatures {
		if normalized == f {
			return f, true
		}
	}
	return normalized, false
}
