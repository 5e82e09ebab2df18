// Package translate rewrites the embedded SQL-like expression sublanguage of
// semantic-model definitions into the target formula syntax: bracketed
// column references, if(...) conditionals, & concatenation and
// splitpart(...) extraction.
//
// Construct detection is a small explicit scanner (quote state, paren depth,
// position) rather than chained regular expressions, so nested and quoted
// edge cases stay provable in isolation.
package translate

import (
	"strings"
	"unicode"
)

// matchingParen returns the index of the ')' matching the '(' at open,
// or -1 when the string ends first. Parens inside single-quoted literals do
// not count toward depth.
func matchingParen(s string, open int) int {
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitArgs splits s on top-level commas, ignoring commas nested inside
// parentheses or single-quoted literals. Each argument is trimmed.
func splitArgs(s string) []string {
	var args []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args
}

// indexKeyword returns the byte offset of the first whole-word,
// case-insensitive occurrence of kw in s at or after from, skipping
// occurrences inside single-quoted literals. Returns -1 when absent.
func indexKeyword(s, kw string, from int) int {
	lower := strings.ToLower(s)
	kw = strings.ToLower(kw)
	inQuote := quoteParity(s[:from])
	for i := from; i+len(kw) <= len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		if lower[i:i+len(kw)] != kw {
			continue
		}
		if i > 0 && isWordByte(s[i-1]) {
			continue
		}
		if end := i + len(kw); end < len(s) && isWordByte(s[end]) {
			continue
		}
		return i
	}
	return -1
}

// quoteParity reports whether the end of s sits inside a single-quoted
// literal (odd number of preceding quote characters).
func quoteParity(s string) bool {
	odd := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			odd = !odd
		}
	}
	return odd
}

// isQuotedLiteral reports whether s, after trimming, is a single quoted
// string with no unquoted remainder.
func isQuotedLiteral(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return false
	}
	// Interior quotes would mean multiple literals or trailing content.
	return !strings.Contains(s[1:len(s)-1], "'")
}

func isWordByte(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}
