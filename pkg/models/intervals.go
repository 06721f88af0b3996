package models

import "regexp"

// intervalPattern matches the archive's interval vocabulary: a count plus a
// unit suffix (1s, 15m, 4h, 1d, 1w, 1mo).
var intervalPattern = regexp.MustCompile(`^[0-9]+(s|m|h|d|w|mo)$`)

// ValidInterval reports whether s is a syntactically valid interval string.
// Entries carrying invalid intervals are treated as having none at all.
func ValidInterval(s string) bool {
	return intervalPattern.MatchString(s)
}
