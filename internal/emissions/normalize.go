package emissions

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeKey trims and case-folds an identifier so it can be used to join
// records from different sources.
func NormalizeKey(s string) string {
	// A Caser keeps state between calls and must not be shared across
	// goroutines.
	return cases.Fold().String(strings.TrimSpace(s))
}

// NormalizeColumn maps a header such as " Product ID " to "product_id".
func NormalizeColumn(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
