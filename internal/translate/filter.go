package translate

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter clauses reference dimensions through a templated form like
// {{ Dimension('orders__status') }}. The rewrites below are independent
// regular substitutions applied in a fixed order; operators outside the
// recognized set pass through unchanged.
var (
	dimensionRefPattern = regexp.MustCompile(`(?:\{\{\s*)?Dimension\(\s*'(?:([A-Za-z0-9_]+)__)?([A-Za-z0-9_]+)'\s*\)(?:\s*\}\})?`)

	notInPattern     = regexp.MustCompile(`(?i)(\[[^\]]+\])\s+not\s+in\s*\(([^)]*)\)`)
	inPattern        = regexp.MustCompile(`(?i)(\[[^\]]+\])\s+in\s*\(([^)]*)\)`)
	isNotNullPattern = regexp.MustCompile(`(?i)(\[[^\]]+\])\s+is\s+not\s+null`)
	isNullPattern    = regexp.MustCompile(`(?i)(\[[^\]]+\])\s+is\s+null`)
	notILikePattern  = regexp.MustCompile(`(?i)(\[[^\]]+\])\s+not\s+ilike\s+('[^']*')`)
	iLikePattern     = regexp.MustCompile(`(?i)(\[[^\]]+\])\s+ilike\s+('[^']*')`)
)

// DimensionRef is one dimension reference extracted from a filter clause.
// The prefix before the double underscore names the entity the dimension is
// reached through; it is empty for unprefixed references.
type DimensionRef struct {
	Entity    string
	Dimension string
}

// FilterDimensions extracts every dimension reference from a filter clause.
func FilterDimensions(filter string) []DimensionRef {
	var refs []DimensionRef
	for _, m := range dimensionRefPattern.FindAllStringSubmatch(filter, -1) {
		refs = append(refs, DimensionRef{Entity: m[1], Dimension: m[2]})
	}
	return refs
}

// TranslateFilter rewrites a filter clause into target syntax: dimension
// references become bracketed identifiers, membership and null/pattern
// operators become predicate calls. Best effort, not validated.
func (t *Translator) TranslateFilter(filter, modelName string) string {
	s := dimensionRefPattern.ReplaceAllStringFunc(filter, func(match string) string {
		m := dimensionRefPattern.FindStringSubmatch(match)
		return "[" + t.DisplayName(m[2]) + "]"
	})

	s = notInPattern.ReplaceAllString(s, "not arraycontains(array($2), $1)")
	s = inPattern.ReplaceAllString(s, "arraycontains(array($2), $1)")
	s = isNotNullPattern.ReplaceAllString(s, "isnotnull($1)")
	s = isNullPattern.ReplaceAllString(s, "isnull($1)")
	s = notILikePattern.ReplaceAllString(s, "not ilike($1, $2)")
	s = iLikePattern.ReplaceAllString(s, "ilike($1, $2)")

	return strings.TrimSpace(s)
}

// CombineFilters joins two translated filter clauses with logical AND.
// Either side may be empty.
func CombineFilters(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return fmt.Sprintf("%s and %s", a, b)
	}
}
