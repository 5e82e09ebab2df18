package depgraph

import (
	"log/slog"
)

// Layer is one batch of models whose dependencies are fully contained in
// strictly earlier layers. Index starts at 1.
type Layer struct {
	Index  int
	Models []string
}

// Layerize orders the dependency map into layers by iterative frontier
// expansion. Layer 1 holds models with no dependencies; each later layer
// holds models whose dependencies are all placed in earlier layers.
//
// If a round places nothing while models remain, the remaining models form a
// cycle; they are placed together in one final layer, in the insertion
// order of the input map, and a warning names them. Cycles are never fatal:
// a batch run must make best-effort progress.
func Layerize(dm *Map, logger *slog.Logger) []Layer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	placed := make(map[string]bool, len(dm.Names))
	remaining := append([]string(nil), dm.Names...)

	var layers []Layer
	for len(remaining) > 0 {
		var frontier, next []string
		for _, name := range remaining {
			if depsSatisfied(dm.Records[name], placed) {
				frontier = append(frontier, name)
			} else {
				next = append(next, name)
			}
		}

		if len(frontier) == 0 {
			// Cycle: force the rest into one layer.
			logger.Warn("dependency cycle detected, placing remaining models in one layer",
				"models", remaining)
			frontier = remaining
			next = nil
		}

		for _, name := range frontier {
			placed[name] = true
		}
		layers = append(layers, Layer{Index: len(layers) + 1, Models: frontier})
		remaining = next
	}

	return layers
}

func depsSatisfied(rec *Record, placed map[string]bool) bool {
	for _, dep := range rec.DependsOn {
		if !placed[dep] {
			return false
		}
	}
	return true
}
