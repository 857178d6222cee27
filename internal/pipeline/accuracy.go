package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
)

// NormalizeAccuracy turns a reply's accuracy into "NN%": a whole number
// between 0 and 100 followed by a percent sign. Numbers and strings such as
// "93.4 %" are accepted and rounded.
func NormalizeAccuracy(v any) (string, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", invalidAccuracy(v)
		}
		f = parsed
	default:
		return "", invalidAccuracy(v)
	}
	if math.IsNaN(f) || f < 0 || f > 100 {
		return "", invalidAccuracy(v)
	}
	return strconv.Itoa(int(math.Round(f))) + "%", nil
}

func invalidAccuracy(v any) error {
	return common.CollaboratorError("invalid accuracy in reply", fmt.Errorf("accuracy %v", v))
}
