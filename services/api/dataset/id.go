package dataset

import (
	"regexp"
	"strings"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/apperr"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// NormalizeID lowercases and validates a dataset identifier such as a
// state code.
func NormalizeID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if !idPattern.MatchString(id) {
		return "", apperr.Validation("invalid dataset identifier").
			WithOp("dataset.NormalizeID").
			WithDetails(map[string]string{"param": "dataset", "dataset": raw})
	}
	return id, nil
}
