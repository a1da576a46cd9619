// Package pattern converts shell-style wildcards into compiled matchers.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode controls how characters other than the wildcards are treated.
type Mode string

const (
	// ModeEscaped matches every non-wildcard character literally.
	ModeEscaped Mode = "escaped"
	// ModeRegex passes non-wildcard characters to the regexp engine as-is,
	// so "oid_1[0-4]" behaves as a character class.
	ModeRegex Mode = "regex"
)

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeEscaped:
		return ModeEscaped, nil
	case ModeRegex:
		return ModeRegex, nil
	default:
		return "", fmt.Errorf("unknown pattern mode %q (want %q or %q)", s, ModeEscaped, ModeRegex)
	}
}

// InvalidPatternError reports a wildcard that did not compile.
// It is a client input error.
type InvalidPatternError struct {
	Err     error
	Pattern string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid search pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// Matcher is a compiled, start-anchored, case-insensitive wildcard.
// It is safe for concurrent use.
type Matcher struct {
	re *regexp.Regexp
}

// Compile builds a Matcher from a wildcard. prefix is matched literally
// in front of the converted wildcard.
func Compile(wildcard, prefix string, mode Mode) (*Matcher, error) {
	expr := "(?i)^" + regexp.QuoteMeta(prefix) + translate(wildcard, mode)

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: wildcard, Err: err}
	}
	return &Matcher{re: re}, nil
}

// Match reports whether s starts with the pattern.
func (m *Matcher) Match(s string) bool {
	return m.re.MatchString(s)
}

// String returns the compiled expression.
func (m *Matcher) String() string {
	return m.re.String()
}

func translate(wildcard string, mode Mode) string {
	var b strings.Builder
	b.Grow(len(wildcard) + 8)

	literal := func(s string) {
		if mode == ModeRegex {
			b.WriteString(s)
			return
		}
		b.WriteString(regexp.QuoteMeta(s))
	}

	start := 0
	for i := 0; i < len(wildcard); i++ {
		switch wildcard[i] {
		case '*':
			literal(wildcard[start:i])
			b.WriteString(".*")
			start = i + 1
		case '?':
			literal(wildcard[start:i])
			b.WriteString(".")
			start = i + 1
		}
	}
	literal(wildcard[start:])
	return b.String()
}
