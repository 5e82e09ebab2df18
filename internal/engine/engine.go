// Package engine orchestrates translation runs: discovery, dependency
// layering, per-model translation and artifact publishing.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/semabridge/internal/depgraph"
	"github.com/leapstack-labs/semabridge/internal/semantic"
	"github.com/leapstack-labs/semabridge/internal/state"
)

// Engine drives the translation of a semantic-model corpus into published
// data-model artifacts.
type Engine struct {
	logger *slog.Logger
	store  state.Store

	modelsDir    string
	environment  string
	displayNames bool

	models  []*semantic.Model
	metrics map[string][]semantic.Metric // metrics grouped by defining file
	catalog []semantic.Metric            // global metric catalog
	index   depgraph.EntityIndex
	deps    *depgraph.Map
}

// Config holds engine configuration.
type Config struct {
	// ModelsDir is the path to the semantic-model definitions directory.
	ModelsDir string
	// StatePath is the path to the SQLite state database.
	StatePath string
	// Environment is the current environment (dev, staging, prod).
	Environment string
	// DisplayNames replaces underscores with spaces in surfaced identifiers.
	DisplayNames bool
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Store overrides the default SQLite store (used in tests).
	Store state.Store
}

// New creates an engine and opens its state store.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "models_dir", cfg.ModelsDir, "environment", cfg.Environment)

	store := cfg.Store
	if store == nil {
		store = state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate state store: %w", err)
		}
	}

	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	return &Engine{
		logger:       logger,
		store:        store,
		modelsDir:    cfg.ModelsDir,
		environment:  env,
		displayNames: cfg.DisplayNames,
		metrics:      make(map[string][]semantic.Metric),
	}, nil
}

// Close releases the state store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Models returns the discovered semantic models in corpus order.
func (e *Engine) Models() []*semantic.Model {
	return e.models
}

// MetricCatalog returns every metric definition in the analysis scope.
func (e *Engine) MetricCatalog() []semantic.Metric {
	return e.catalog
}

// DependencyMap returns the per-run dependency map built during discovery.
func (e *Engine) DependencyMap() *depgraph.Map {
	return e.deps
}

// Layers orders the discovered models into translation layers.
func (e *Engine) Layers() []depgraph.Layer {
	if e.deps == nil {
		return nil
	}
	return depgraph.Layerize(e.deps, e.logger)
}

// Store returns the state store.
func (e *Engine) Store() state.Store {
	return e.store
}
