package metric

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/leapstack-labs/semabridge/internal/artifact"
	"github.com/leapstack-labs/semabridge/internal/semantic"
	"github.com/leapstack-labs/semabridge/internal/translate"
)

// wordPattern tokenizes derived-metric expressions into bare-word parts.
var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Resolver converts metric definitions into target formulas for one run.
// The catalog spans the full analysis scope; the cache is run-scoped.
type Resolver struct {
	catalog    map[string]*semantic.Metric
	translator *translate.Translator
	cache      *Cache
	logger     *slog.Logger

	// resolving tracks metrics currently being resolved so a reference
	// cycle fails with an error instead of recursing without bound.
	resolving map[string]bool
}

// NewResolver builds a resolver over the global metric catalog.
func NewResolver(catalog []semantic.Metric, tr *translate.Translator, cache *Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	byName := make(map[string]*semantic.Metric, len(catalog))
	for i := range catalog {
		byName[catalog[i].Name] = &catalog[i]
	}
	return &Resolver{
		catalog:    byName,
		translator: tr,
		cache:      cache,
		logger:     logger,
		resolving:  make(map[string]bool),
	}
}

// CanAddToModel reports whether a metric is placeable on the model: every
// measure or metric it references must be a measure declared on the model
// or a metric in the global catalog, and every entity prefix in its filters
// must be an entity on the model. The empty reason means placeable.
//
// Note: the check does not recurse through derived-metric chains to verify
// transitively-referenced time dimensions; an indirectly absent dimension
// can still slip through.
func (r *Resolver) CanAddToModel(m *semantic.Metric, model *semantic.Model) (bool, string) {
	var refs []semantic.MetricInput
	switch m.Type {
	case semantic.MetricSimple:
		refs = append(refs, *m.TypeParams.Measure)
	case semantic.MetricDerived:
		refs = append(refs, m.TypeParams.Metrics...)
	case semantic.MetricRatio:
		refs = append(refs, *m.TypeParams.Numerator, *m.TypeParams.Denominator)
	}

	for _, ref := range refs {
		if model.Measure(ref.Name) != nil {
			continue
		}
		if _, ok := r.catalog[ref.Name]; ok {
			continue
		}
		return false, fmt.Sprintf("reference %q is neither a measure on %s nor a known metric", ref.Name, model.Name)
	}

	filters := []string{m.Filter}
	for _, ref := range refs {
		filters = append(filters, ref.Filter)
	}
	for _, f := range filters {
		for _, dim := range translate.FilterDimensions(f) {
			if dim.Entity == "" {
				continue
			}
			if !model.HasEntity(dim.Entity) {
				return false, fmt.Sprintf("filter references entity %q not present on %s", dim.Entity, model.Name)
			}
		}
	}

	return true, ""
}

// ResolveForModel converts the given metrics into translated formulas for
// the model. Metrics failing the eligibility test go to the deferred
// cross-model set; metrics whose formula cannot be derived are omitted with
// a warning. Resolution runs in three passes (simple, derived, ratio)
// because derived and ratio metrics may reference already-resolved simple
// metrics.
func (r *Resolver) ResolveForModel(model *semantic.Model, metrics []semantic.Metric) ([]artifact.Metric, []artifact.DeferredMetric) {
	var out []artifact.Metric
	var deferred []artifact.DeferredMetric

	for _, pass := range []semantic.MetricType{semantic.MetricSimple, semantic.MetricDerived, semantic.MetricRatio} {
		for _, m := range metrics {
			if m.Type != pass {
				continue
			}

			if ok, reason := r.CanAddToModel(&m, model); !ok {
				r.logger.Warn("metric deferred to cross-model catalog",
					"metric", m.Name, "model", model.Name, "reason", reason)
				deferred = append(deferred, artifact.DeferredMetric{
					Metric: m, Model: model.Name, Reason: reason,
				})
				continue
			}

			formula, err := r.Resolve(&m, model)
			if err != nil {
				r.logger.Warn("metric has no resolvable formula, omitted",
					"metric", m.Name, "model", model.Name, "error", err)
				continue
			}

			label := m.Label
			if label == "" {
				label = r.translator.DisplayName(m.Name)
			}
			out = append(out, artifact.Metric{
				Name:        m.Name,
				Label:       label,
				Formula:     formula.Formula,
				Description: m.Description,
			})
		}
	}

	return out, deferred
}

// Resolve converts one metric into its formula object, memoizing the result
// so repeated references recombine instead of retranslating. Metrics whose
// references cycle back to themselves are unresolvable and error out; the
// caller's omit-with-warning path handles them.
func (r *Resolver) Resolve(m *semantic.Metric, model *semantic.Model) (*FormulaObject, error) {
	if f, ok := r.cache.Get(m.Name); ok {
		return f, nil
	}
	if r.resolving[m.Name] {
		return nil, fmt.Errorf("reference cycle through metric %q", m.Name)
	}
	r.resolving[m.Name] = true
	defer delete(r.resolving, m.Name)

	var f *FormulaObject
	var err error
	switch m.Type {
	case semantic.MetricSimple:
		f, err = r.resolveSimple(m, model)
	case semantic.MetricDerived:
		f, err = r.resolveDerived(m, model)
	case semantic.MetricRatio:
		f, err = r.resolveRatio(m, model)
	default:
		err = fmt.Errorf("unknown metric type %q", m.Type)
	}
	if err != nil {
		return nil, err
	}

	r.cache.Put(m.Name, f)
	return f, nil
}

// resolveSimple aggregates the referenced measure, folding the metric and
// reference filters into the filter-qualified aggregation form.
func (r *Resolver) resolveSimple(m *semantic.Metric, model *semantic.Model) (*FormulaObject, error) {
	ref := m.TypeParams.Measure
	measure := model.Measure(ref.Name)
	if measure == nil {
		return nil, fmt.Errorf("measure %q not declared on model %q", ref.Name, model.Name)
	}

	expr := measure.Expr
	if expr == "" {
		expr = measure.Name
	}
	translated := r.translator.Translate(expr)
	agg := strings.ToLower(measure.Agg)

	filter := translate.CombineFilters(
		r.translateFilter(m.Filter, model),
		r.translateFilter(ref.Filter, model),
	)

	return &FormulaObject{
		Formula:        aggFormula(agg, translated, filter),
		AggFunc:        agg,
		MeasureExpr:    translated,
		ExistingFilter: filter,
	}, nil
}

// resolveDerived substitutes each referenced metric's formula into the
// free-form expression, matching tokens first by alias and then by name.
func (r *Resolver) resolveDerived(m *semantic.Metric, model *semantic.Model) (*FormulaObject, error) {
	expr := m.TypeParams.Expr

	refByToken := func(token string) *semantic.MetricInput {
		for i := range m.TypeParams.Metrics {
			if m.TypeParams.Metrics[i].Alias == token {
				return &m.TypeParams.Metrics[i]
			}
		}
		for i := range m.TypeParams.Metrics {
			if m.TypeParams.Metrics[i].Name == token {
				return &m.TypeParams.Metrics[i]
			}
		}
		return nil
	}

	// Resolve every referenced token first, then substitute in one pass
	// over the source expression. Substituting sequentially would let a
	// later token match inside an earlier token's substituted formula.
	formulas := make(map[string]string)
	for _, token := range wordPattern.FindAllString(expr, -1) {
		if _, done := formulas[token]; done {
			continue
		}
		ref := refByToken(token)
		if ref == nil {
			continue
		}
		formula, err := r.resolveRef(*ref, model)
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", ref.Name, err)
		}
		formulas[token] = formula
	}

	out := wordPattern.ReplaceAllStringFunc(expr, func(token string) string {
		if formula, ok := formulas[token]; ok {
			return formula
		}
		return token
	})

	return &FormulaObject{Formula: out}, nil
}

// resolveRatio divides the resolved numerator by the resolved denominator.
// If either side fails, no formula is produced.
func (r *Resolver) resolveRatio(m *semantic.Metric, model *semantic.Model) (*FormulaObject, error) {
	num, err := r.resolveRef(*m.TypeParams.Numerator, model)
	if err != nil {
		return nil, fmt.Errorf("numerator: %w", err)
	}
	den, err := r.resolveRef(*m.TypeParams.Denominator, model)
	if err != nil {
		return nil, fmt.Errorf("denominator: %w", err)
	}

	return &FormulaObject{Formula: fmt.Sprintf("(%s) / (%s)", num, den)}, nil
}

// resolveRef resolves a measure-or-metric reference to a formula string,
// composing the reference's filter with any filter already baked into the
// referenced formula. Recombination rebuilds from the cached aggregation
// function and measure expression so the output never nests one
// filter-function call inside another.
func (r *Resolver) resolveRef(ref semantic.MetricInput, model *semantic.Model) (string, error) {
	base, err := r.resolveBase(ref.Name, model)
	if err != nil {
		return "", err
	}

	if ref.Filter == "" {
		return base.Formula, nil
	}

	refFilter := r.translateFilter(ref.Filter, model)
	if base.AggFunc == "" {
		// Non-aggregation base (derived or ratio): there is no single
		// aggregation to rebuild, so the filter cannot be applied.
		r.logger.Warn("cannot apply filter to non-aggregation formula, using unfiltered form",
			"reference", ref.Name)
		return base.Formula, nil
	}

	combined := translate.CombineFilters(base.ExistingFilter, refFilter)
	return aggFormula(base.AggFunc, base.MeasureExpr, combined), nil
}

// resolveBase resolves a bare name to a formula object: a measure declared
// on the model, a cached formula, or a catalog metric resolved recursively.
func (r *Resolver) resolveBase(name string, model *semantic.Model) (*FormulaObject, error) {
	if f, ok := r.cache.Get(name); ok {
		return f, nil
	}

	if measure := model.Measure(name); measure != nil {
		expr := measure.Expr
		if expr == "" {
			expr = measure.Name
		}
		translated := r.translator.Translate(expr)
		agg := strings.ToLower(measure.Agg)
		f := &FormulaObject{
			Formula:     aggFormula(agg, translated, ""),
			AggFunc:     agg,
			MeasureExpr: translated,
		}
		r.cache.Put(name, f)
		return f, nil
	}

	if m, ok := r.catalog[name]; ok {
		return r.Resolve(m, model)
	}

	return nil, fmt.Errorf("%q is neither a measure on %s nor a known metric", name, model.Name)
}

func (r *Resolver) translateFilter(filter string, model *semantic.Model) string {
	if filter == "" {
		return ""
	}
	return r.translator.TranslateFilter(filter, model.Name)
}
