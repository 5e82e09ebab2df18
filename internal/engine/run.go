package engine

// run.go - translation orchestration, layer by layer.

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/semabridge/internal/artifact"
	"github.com/leapstack-labs/semabridge/internal/depgraph"
	"github.com/leapstack-labs/semabridge/internal/metric"
	"github.com/leapstack-labs/semabridge/internal/semantic"
	"github.com/leapstack-labs/semabridge/internal/state"
	"github.com/leapstack-labs/semabridge/internal/translate"
)

// ModelError pairs a failed model with its error. A single model's failure
// never aborts the run; failures accumulate here.
type ModelError struct {
	Model string
	Err   error
}

// RunResult is the outcome of one translation run.
type RunResult struct {
	Run         *state.Run
	Layers      []depgraph.Layer
	Translated  []string
	ModelErrors []ModelError
	Deferred    []artifact.DeferredMetric
}

// Err joins all per-model errors, or nil when every model translated.
func (r *RunResult) Err() error {
	if len(r.ModelErrors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.ModelErrors))
	for _, me := range r.ModelErrors {
		errs = append(errs, fmt.Errorf("%s: %w", me.Model, me.Err))
	}
	return errors.Join(errs...)
}

// Run translates every discovered model in layer order and publishes the
// artifacts.
func (e *Engine) Run(ctx context.Context, env string) (*RunResult, error) {
	if e.deps == nil {
		return nil, fmt.Errorf("no models discovered, run Discover first")
	}
	return e.runLayers(ctx, env, e.deps)
}

// RunSelected translates only the named models, optionally widened to their
// transitive dependents. Dependencies outside the selection must already be
// published.
func (e *Engine) RunSelected(ctx context.Context, env string, names []string, downstream bool) (*RunResult, error) {
	if e.deps == nil {
		return nil, fmt.Errorf("no models discovered, run Discover first")
	}

	selected := names
	if downstream {
		selected = e.deps.Dependents(names)
	}
	e.logger.Info("starting selected run", "models", selected, "include_downstream", downstream)

	return e.runLayers(ctx, env, e.deps.Subset(selected))
}

func (e *Engine) runLayers(ctx context.Context, env string, dm *depgraph.Map) (*RunResult, error) {
	if env == "" {
		env = e.environment
	}
	e.logger.Info("starting run", "environment", env, "models", len(dm.Names))

	run, err := e.store.CreateRun(env)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	result := &RunResult{
		Run:    run,
		Layers: depgraph.Layerize(dm, e.logger),
	}

	byName := make(map[string]*semantic.Model, len(e.models))
	for _, m := range e.models {
		byName[m.Name] = m
	}

	// One translator, resolver and formula cache per run. Later layers see
	// the artifacts earlier layers published, but never another run's.
	translator := translate.New(e.displayNames)
	cache := metric.NewCache()
	resolver := metric.NewResolver(e.catalog, translator, cache, e.logger)

	for _, layer := range result.Layers {
		e.logger.Debug("translating layer", "layer", layer.Index, "models", layer.Models)
		for _, name := range layer.Models {
			if ctx.Err() != nil {
				_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, ctx.Err().Error())
				return result, ctx.Err()
			}

			model, ok := byName[name]
			if !ok {
				result.ModelErrors = append(result.ModelErrors, ModelError{
					Model: name, Err: fmt.Errorf("model not found in corpus"),
				})
				continue
			}

			art, deferred := e.translateModel(model, translator, resolver)
			result.Deferred = append(result.Deferred, deferred...)

			if err := e.store.PublishModel(art); err != nil {
				e.logger.Error("failed to publish model", "model", name, "error", err)
				result.ModelErrors = append(result.ModelErrors, ModelError{Model: name, Err: err})
				continue
			}
			result.Translated = append(result.Translated, name)
		}
	}

	if len(result.Deferred) > 0 {
		if err := e.store.SaveDeferredMetrics(result.Deferred); err != nil {
			e.logger.Error("failed to save deferred metrics", "error", err)
		}
	}

	if rerr := result.Err(); rerr != nil {
		e.logger.Info("run completed with failures", "run_id", run.ID, "failed", len(result.ModelErrors))
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed,
			fmt.Sprintf("%d model(s) failed to translate", len(result.ModelErrors)))
	} else {
		e.logger.Info("run completed", "run_id", run.ID, "translated", len(result.Translated))
		_ = e.store.CompleteRun(run.ID, state.RunStatusCompleted, "")
	}

	result.Run, _ = e.store.GetRun(run.ID)
	return result, nil
}

// translateModel converts one semantic model into its artifact: an element,
// translated columns, relationships for resolvable foreign entities and the
// model's placeable metrics.
func (e *Engine) translateModel(model *semantic.Model, translator *translate.Translator, resolver *metric.Resolver) (*artifact.Model, []artifact.DeferredMetric) {
	art := &artifact.Model{
		Name:        model.Name,
		Description: model.Description,
		Elements: []artifact.Element{{
			ID:   model.Name,
			Name: translator.DisplayName(model.Name),
		}},
	}

	// Entity key columns.
	for _, ent := range model.Entities {
		col := artifact.Column{
			ID:   artifact.KeyColumnID(model.Name, ent.Name),
			Name: translator.DisplayName(ent.Name),
		}
		if ent.Expr != "" {
			col.Formula = translator.Translate(ent.Expr)
		}
		art.Columns = append(art.Columns, col)
	}

	// Dimension columns.
	for _, dim := range model.Dimensions {
		col := artifact.Column{
			ID:   dim.Name,
			Name: translator.DisplayName(dim.Name),
		}
		if dim.Expr != "" && dim.Expr != dim.Name {
			col.Formula = translator.Translate(dim.Expr)
		}
		art.Columns = append(art.Columns, col)
	}

	// Relationships: one per foreign entity whose owner is resolvable and
	// already published. Missing targets degrade to a warning.
	for _, fe := range model.ForeignEntities() {
		owner, ok := e.index[fe.Name]
		if !ok {
			continue // already warned during graph build
		}
		published, err := e.store.GetPublishedModel(owner.Model)
		if err != nil {
			if errors.Is(err, state.ErrNotFound) {
				e.logger.Warn("relationship target not yet published, skipping",
					"model", model.Name, "entity", fe.Name, "target", owner.Model)
			} else {
				e.logger.Error("failed to read published model",
					"model", owner.Model, "error", err)
			}
			continue
		}

		key := artifact.KeyColumnID(model.Name, fe.Name)
		art.Relationships = append(art.Relationships, artifact.Relationship{
			Name:       key,
			FromColumn: key,
			ToModel:    published.DataModelID,
			ToColumn:   artifact.KeyColumnID(owner.Model, fe.Name),
		})
	}

	metrics, deferred := resolver.ResolveForModel(model, e.fileMetrics(model))
	art.Metrics = metrics

	return art, deferred
}
