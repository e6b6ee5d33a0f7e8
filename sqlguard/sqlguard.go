// Package sqlguard vets SQL produced by a language model before it is
// executed: strip the markdown the model wraps around it, then allow only
// a single read-only SELECT statement.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeSQL is wrapped by every Check rejection.
var ErrUnsafeSQL = errors.New("unsafe SQL")

var (
	fenceOpen     = regexp.MustCompile("(?i)```\\s*sql\\s*")
	fenceAny      = regexp.MustCompile("```\\s*")
	lineComment   = regexp.MustCompile(`--[^\n]*`)
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	stringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)
	wordBoundary  = regexp.MustCompile(`[A-Z_]+`)
)

// forbidden keywords may not appear anywhere outside string literals.
var forbidden = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"CREATE":   true,
	"ALTER":    true,
	"TRUNCATE": true,
	"GRANT":    true,
	"REVOKE":   true,
	"MERGE":    true,
	"COPY":     true,
	"CALL":     true,
	"VACUUM":   true,
}

// Clean removes markdown code fences and surrounding whitespace, and a
// single trailing semicolon.
func Clean(raw string) string {
	s := fenceOpen.ReplaceAllString(raw, "")
	s = fenceAny.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}

// Check returns nil when sql is one SELECT (optionally led by WITH) and
// contains no data- or schema-modifying keyword.
func Check(sql string) error {
	norm := normalize(sql)
	if norm == "" {
		return fmt.Errorf("%w: empty statement", ErrUnsafeSQL)
	}
	if !strings.HasPrefix(norm, "SELECT") && !strings.HasPrefix(norm, "WITH") {
		return fmt.Errorf("%w: only SELECT statements are allowed", ErrUnsafeSQL)
	}
	if strings.Contains(strings.TrimSuffix(norm, ";"), ";") {
		return fmt.Errorf("%w: multiple statements", ErrUnsafeSQL)
	}
	for _, word := range wordBoundary.FindAllString(norm, -1) {
		if forbidden[word] {
			return fmt.Errorf("%w: %s is not allowed", ErrUnsafeSQL, word)
		}
	}
	return nil
}

// normalize upper-cases sql and drops comments, string literals and
// redundant whitespace so keyword scans see only code.
func normalize(sql string) string {
	s := blockComment.ReplaceAllString(sql, " ")
	s = lineComment.ReplaceAllString(s, " ")
	s = stringLiteral.ReplaceAllString(s, "''")
	s = strings.ToUpper(s)
	return strings.Join(strings.Fields(s), " ")
}
