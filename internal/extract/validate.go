package extract

import (
	"math"
	"strings"
	"unicode/utf8"
)

// ValidateFact checks a fact for validity. Returns true if valid.
// Any non-blank category is accepted; the pattern bank decides which exist.
func ValidateFact(f *Fact) bool {
	if f == nil {
		return false
	}
	if strings.TrimSpace(string(f.Category)) == "" {
		return false
	}
	if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) || f.Value < 0 {
		return false
	}
	ctx := strings.TrimSpace(f.Context)
	if ctx == "" || utf8.RuneCountInString(ctx) > 300 {
		return false
	}
	if f.Page < 0 {
		f.Page = 0
	}
	return true
}
