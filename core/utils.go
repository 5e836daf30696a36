package core

import (
	"math"
	"strings"
)

// IDSeparator joins the parts of deterministic composite ids.
const IDSeparator = "_"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CompositeID builds a deterministic primary key from its parts.
// Parts must not contain IDSeparator (enforced by the `idpart` validation tag).
func CompositeID(parts ...string) string {
	return strings.Join(parts, IDSeparator)
}

// Percent returns round(100 * n / total), half away from zero, clamped to [0, 100].
// A non-positive total yields 0.
func Percent(n, total int) int {
	if total <= 0 || n <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(n) / float64(total)))
	if p > 100 {
		return 100
	}
	return p
}
