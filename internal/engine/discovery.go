package engine

// discovery.go walks the definitions directory and builds the in-memory
// corpus: models, the global metric catalog, the entity index and the
// dependency map.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/semabridge/internal/depgraph"
	"github.com/leapstack-labs/semabridge/internal/semantic"
)

// DiscoveryResult contains statistics about a discovery pass.
type DiscoveryResult struct {
	FilesTotal   int
	ModelsTotal  int
	MetricsTotal int

	// Errors are per-file failures; a failed file never aborts its
	// siblings.
	Errors []DiscoveryError

	Duration time.Duration
}

// DiscoveryError represents a non-fatal error for one definition file.
type DiscoveryError struct {
	Path    string
	Message string
}

// HasErrors returns true if any file failed.
func (r *DiscoveryResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Summary returns a human-readable summary.
func (r *DiscoveryResult) Summary() string {
	return fmt.Sprintf("Files: %d | Models: %d | Metrics: %d | Errors: %d | Duration: %s",
		r.FilesTotal, r.ModelsTotal, r.MetricsTotal, len(r.Errors),
		r.Duration.Round(time.Millisecond))
}

// Discover parses every definition file under the models directory and
// rebuilds the entity index and dependency map from scratch.
func (e *Engine) Discover() (*DiscoveryResult, error) {
	start := time.Now()
	result := &DiscoveryResult{}

	e.logger.Info("starting discovery", "models_dir", e.modelsDir)

	e.models = nil
	e.catalog = nil
	e.metrics = make(map[string][]semantic.Metric)

	err := filepath.WalkDir(e.modelsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDefinitionFile(d.Name()) {
			return nil
		}

		result.FilesTotal++
		def, perr := semantic.ParseFile(path)
		if perr != nil {
			var noModels *semantic.NoModelsError
			if errors.As(perr, &noModels) {
				e.logger.Warn("definition file has no semantic models", "path", path)
			} else {
				e.logger.Warn("failed to parse definition file", "path", path, "error", perr)
			}
			result.Errors = append(result.Errors, DiscoveryError{Path: path, Message: perr.Error()})
			return nil
		}

		for i := range def.SemanticModels {
			m := &def.SemanticModels[i]
			if m.PrimaryEntity() == nil {
				e.logger.Warn("model has no primary entity", "model", m.Name, "path", path)
			}
			e.models = append(e.models, m)
		}
		if len(def.Metrics) > 0 {
			e.metrics[path] = def.Metrics
			e.catalog = append(e.catalog, def.Metrics...)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to walk models directory: %w", err)
	}

	e.index = depgraph.BuildIndex(e.models)
	e.deps = depgraph.Build(e.models, e.index, e.logger)

	result.ModelsTotal = len(e.models)
	result.MetricsTotal = len(e.catalog)
	result.Duration = time.Since(start)

	e.logger.Info("discovery complete", "summary", result.Summary())
	return result, nil
}

// fileMetrics returns the metrics defined alongside a model, i.e. in its
// source definition file.
func (e *Engine) fileMetrics(m *semantic.Model) []semantic.Metric {
	return e.metrics[m.File]
}

func isDefinitionFile(name string) bool {
	return strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}
