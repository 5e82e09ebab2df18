// Package metric converts layered metric definitions (simple, derived,
// ratio) into target formulas, deferring metrics that cannot be placed on
// their model to the shared cross-model catalog.
package metric

import (
	"fmt"
)

// FormulaObject is the decomposed form of a translated formula. Keeping the
// aggregation function, base expression and baked-in filter separate lets a
// later filter-bearing reference recombine algebraically instead of nesting
// a second filter-function call around the first.
type FormulaObject struct {
	Formula        string
	AggFunc        string
	MeasureExpr    string
	ExistingFilter string
}

// Cache memoizes formula objects for one run, keyed by metric or measure
// name. It is owned by a single run and never shared across runs.
type Cache struct {
	formulas map[string]*FormulaObject
}

// NewCache returns an empty run-scoped formula cache.
func NewCache() *Cache {
	return &Cache{formulas: make(map[string]*FormulaObject)}
}

// Get returns the cached formula for name, if any.
func (c *Cache) Get(name string) (*FormulaObject, bool) {
	f, ok := c.formulas[name]
	return f, ok
}

// Put caches the formula for name.
func (c *Cache) Put(name string, f *FormulaObject) {
	c.formulas[name] = f
}

// aggFormula renders an aggregation over expr, using the filter-qualified
// form when filter is non-empty. Count omits the expression argument in the
// filtered form.
func aggFormula(agg, expr, filter string) string {
	if filter == "" {
		return fmt.Sprintf("%s(%s)", agg, expr)
	}
	if agg == "count" {
		return fmt.Sprintf("countif(%s)", filter)
	}
	return fmt.Sprintf("%sif(%s, %s)", agg, expr, filter)
}
