package translate

import (
	"strings"
)

// maxPasses bounds the rewrite loop so pathological or cyclic input always
// terminates.
const maxPasses = 10

// reserved lists keywords and function names that never become column
// references during the final bracketing pass.
var reserved = map[string]bool{
	"if": true, "splitpart": true, "split_part": true, "concat": true, "case": true,
	"when": true, "then": true, "else": true, "end": true,
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"null": true, "true": true, "false": true, "like": true, "ilike": true,
	"between": true, "distinct": true, "as": true, "cast": true,
	"sum": true, "count": true, "avg": true, "min": true, "max": true,
	"sumif": true, "countif": true, "avgif": true, "minif": true, "maxif": true,
	"array": true, "arraycontains": true, "isnull": true, "isnotnull": true,
	"coalesce": true, "lower": true, "upper": true, "trim": true,
	"abs": true, "round": true, "floor": true, "ceiling": true,
	"current_date": true, "date": true, "datetime": true,
}

// Translator rewrites raw expressions into target formula syntax. It is
// stateless apart from the display-name policy, so one instance serves a
// whole run.
type Translator struct {
	// DisplayNames replaces underscores with spaces in every identifier
	// surfaced into a bracketed reference.
	DisplayNames bool
}

// New returns a Translator with the given display-name policy.
func New(displayNames bool) *Translator {
	return &Translator{DisplayNames: displayNames}
}

// Translate rewrites a raw expression into target syntax. It is pure and
// idempotent at fixed point: re-translating its own output yields the same
// string.
func (t *Translator) Translate(expr string) string {
	return t.bracketColumns(t.rewriteConstructs(expr))
}

// rewriteConstructs repeatedly rewrites one outermost known construct per
// pass, in strict priority order: conditional, concatenation, substring
// extraction. Malformed constructs yield no match and the original text
// survives the pass.
func (t *Translator) rewriteConstructs(expr string) string {
	s := expr
	for i := 0; i < maxPasses; i++ {
		if out, ok := t.rewriteCase(s); ok {
			s = out
			continue
		}
		if out, ok := t.rewriteConcat(s); ok {
			s = out
			continue
		}
		if out, ok := t.rewriteSplitPart(s); ok {
			s = out
			continue
		}
		break
	}
	return s
}

// rewriteCase converts CASE WHEN c THEN r [...] [ELSE e] END into
// if(c,r,...,e). Conditions and results are retranslated independently;
// bracketing is left to the caller's final pass.
func (t *Translator) rewriteCase(s string) (string, bool) {
	start := indexKeyword(s, "case", 0)
	if start == -1 {
		return "", false
	}

	end := matchingEnd(s, start+len("case"))
	if end == -1 {
		return "", false
	}
	body := s[start+len("case") : end]

	whens, thens, elsePos := caseKeywordPositions(body)
	if len(whens) == 0 || len(whens) != len(thens) {
		return "", false
	}
	for i := range whens {
		if thens[i] < whens[i] {
			return "", false
		}
	}

	// Boundaries of each result: the next WHEN, the ELSE, or end of body.
	boundary := func(from int) int {
		b := len(body)
		for _, w := range whens {
			if w > from && w < b {
				b = w
			}
		}
		if elsePos > from && elsePos < b {
			b = elsePos
		}
		return b
	}

	var parts []string
	for i, w := range whens {
		cond := body[w+len("when") : thens[i]]
		result := body[thens[i]+len("then") : boundary(thens[i])]
		parts = append(parts,
			t.rewriteConstructs(strings.TrimSpace(cond)),
			t.rewriteConstructs(strings.TrimSpace(result)))
	}
	if elsePos != -1 {
		parts = append(parts, t.rewriteConstructs(strings.TrimSpace(body[elsePos+len("else"):])))
	}

	return s[:start] + "if(" + strings.Join(parts, ",") + ")" + s[end+len("end"):], true
}

// matchingEnd finds the END matching the CASE whose body starts at from,
// accounting for nested CASE expressions. Returns -1 on unterminated input.
func matchingEnd(s string, from int) int {
	depth := 1
	pos := from
	for {
		ci := indexKeyword(s, "case", pos)
		ei := indexKeyword(s, "end", pos)
		if ei == -1 {
			return -1
		}
		if ci != -1 && ci < ei {
			depth++
			pos = ci + len("case")
			continue
		}
		depth--
		if depth == 0 {
			return ei
		}
		pos = ei + len("end")
	}
}

// caseKeywordPositions collects top-level WHEN/THEN positions and the ELSE
// position (-1 if absent) within a CASE body, ignoring keywords nested in
// parentheses, quoted literals or inner CASE expressions.
func caseKeywordPositions(body string) (whens, thens []int, elsePos int) {
	elsePos = -1
	lower := strings.ToLower(body)
	parenDepth := 0
	caseDepth := 0
	inQuote := false

	matchAt := func(i int, kw string) bool {
		if i+len(kw) > len(body) || lower[i:i+len(kw)] != kw {
			return false
		}
		if i > 0 && isWordByte(body[i-1]) {
			return false
		}
		if end := i + len(kw); end < len(body) && isWordByte(body[end]) {
			return false
		}
		return true
	}

	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '\'':
			inQuote = !inQuote
		case inQuote:
		case body[i] == '(':
			parenDepth++
		case body[i] == ')':
			parenDepth--
		case parenDepth == 0 && matchAt(i, "case"):
			caseDepth++
			i += len("case") - 1
		case parenDepth == 0 && caseDepth > 0 && matchAt(i, "end"):
			caseDepth--
			i += len("end") - 1
		case parenDepth == 0 && caseDepth == 0:
			switch {
			case matchAt(i, "when"):
				whens = append(whens, i)
				i += len("when") - 1
			case matchAt(i, "then"):
				thens = append(thens, i)
				i += len("then") - 1
			case matchAt(i, "else"):
				elsePos = i
				i += len("else") - 1
			}
		}
	}
	return whens, thens, elsePos
}

// rewriteConcat converts CONCAT(a,b,...) into a & b & ... with each
// non-literal argument fully translated.
func (t *Translator) rewriteConcat(s string) (string, bool) {
	start, open := findCall(s, "concat")
	if start == -1 {
		return "", false
	}
	close_ := matchingParen(s, open)
	if close_ == -1 {
		return "", false
	}

	args := splitArgs(s[open+1 : close_])
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if isQuotedLiteral(arg) {
			parts = append(parts, arg)
			continue
		}
		parts = append(parts, t.Translate(arg))
	}

	return s[:start] + strings.Join(parts, " & ") + s[close_+1:], true
}

// rewriteSplitPart converts SPLIT_PART(value, delim, n) into
// splitpart(value,delim,n). Anything but exactly three arguments is
// rejected.
func (t *Translator) rewriteSplitPart(s string) (string, bool) {
	start, open := findCall(s, "split_part")
	if start == -1 {
		return "", false
	}
	close_ := matchingParen(s, open)
	if close_ == -1 {
		return "", false
	}

	args := splitArgs(s[open+1 : close_])
	if len(args) != 3 {
		return "", false
	}
	for i, arg := range args {
		if isQuotedLiteral(arg) || isNumber(arg) {
			continue
		}
		args[i] = t.Translate(arg)
	}

	return s[:start] + "splitpart(" + strings.Join(args, ",") + ")" + s[close_+1:], true
}

// findCall locates the first whole-word occurrence of name followed by an
// opening parenthesis, outside quoted literals. Returns the keyword offset
// and the paren offset, or (-1, -1).
func findCall(s, name string) (start, open int) {
	from := 0
	for {
		idx := indexKeyword(s, name, from)
		if idx == -1 {
			return -1, -1
		}
		j := idx + len(name)
		for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
			j++
		}
		if j < len(s) && s[j] == '(' {
			return idx, j
		}
		from = idx + len(name)
	}
}

// bracketColumns converts every remaining bare identifier into a bracketed
// column reference. Identifiers inside quoted literals or existing brackets
// are left alone, as are reserved keywords and numbers, so the pass never
// double-brackets.
func (t *Translator) bracketColumns(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inQuote := false
	inBracket := false
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
			i++
		case inQuote:
			b.WriteByte(c)
			i++
		case c == '[':
			inBracket = true
			b.WriteByte(c)
			i++
		case c == ']':
			inBracket = false
			b.WriteByte(c)
			i++
		case inBracket:
			b.WriteByte(c)
			i++
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			word := s[i:j]
			if isIdentifier(word) && !reserved[strings.ToLower(word)] {
				b.WriteByte('[')
				b.WriteString(t.DisplayName(word))
				b.WriteByte(']')
			} else {
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// DisplayName applies the display-name policy to a raw identifier.
func (t *Translator) DisplayName(name string) string {
	if t.DisplayNames {
		return strings.ReplaceAll(name, "_", " ")
	}
	return name
}

// isIdentifier reports whether word looks like a column identifier rather
// than a number.
func isIdentifier(word string) bool {
	if word == "" {
		return false
	}
	c := word[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if (s[i] < '0' || s[i] > '9') && s[i] != '.' && s[i] != '-' {
			return false
		}
	}
	return true
}
