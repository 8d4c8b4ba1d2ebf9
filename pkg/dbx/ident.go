package dbx

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdent reports a table or column reference that failed
// validation before SQL generation.
var ErrInvalidIdent = errors.New("invalid identifier")

// Identifiers are a bare name or schema.name, each part starting with
// a letter. Anything else is rejected rather than escaped.
var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_#$]*(\.[A-Za-z][A-Za-z0-9_#$]*)?$`)

// QuoteIdent validates ident and returns it with each dotted part
// folded and double-quoted. Connectors pass their dialect's case fold
// (upper for Oracle, lower for Postgres).
func QuoteIdent(ident string, fold func(string) string) (string, error) {
	if ident == "" {
		return "", fmt.Errorf("empty identifier: %w", ErrInvalidIdent)
	}
	if !identPattern.MatchString(ident) {
		return "", fmt.Errorf("%q: %w", ident, ErrInvalidIdent)
	}
	parts := strings.Split(ident, ".")
	for i, part := range parts {
		parts[i] = `"` + fold(part) + `"`
	}
	return strings.Join(parts, "."), nil
}
