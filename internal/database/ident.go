package database

import (
	"regexp"
	"strings"
)

// identPattern is the allowlist for identifiers that must be interpolated
// into statement text. SQLite pragmas cannot take bound parameters, so any
// name outside this set is rejected instead of escaped.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidIdent reports whether name may be interpolated into SQL.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// QuoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
// This safely handles reserved words and names starting with a digit.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
