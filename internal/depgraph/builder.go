// Package depgraph builds the cross-model dependency map from foreign-entity
// references and orders models into translation layers.
package depgraph

import (
	"log/slog"

	"github.com/leapstack-labs/semabridge/internal/semantic"
)

// EntityOwner identifies where a primary or unique entity is declared.
type EntityOwner struct {
	File  string
	Model string
}

// EntityIndex maps entity name to its declaring model, for every entity with
// role primary or unique across the full definition corpus.
type EntityIndex map[string]EntityOwner

// BuildIndex scans the corpus and indexes every primary and unique entity.
func BuildIndex(models []*semantic.Model) EntityIndex {
	idx := make(EntityIndex)
	for _, m := range models {
		for _, e := range m.Entities {
			if e.Type == semantic.EntityPrimary || e.Type == semantic.EntityUnique {
				idx[e.Name] = EntityOwner{File: m.File, Model: m.Name}
			}
		}
	}
	return idx
}

// Record holds one model's resolved dependency edges.
type Record struct {
	// DependsOn names the models whose primary/unique entities this model's
	// foreign entities reference.
	DependsOn []string
	// Dependents is the reverse edge set, filled in by inversion.
	Dependents []string
	// Unresolved names foreign entities that matched nothing in the index.
	Unresolved []string
}

// Map is the per-run dependency map. Names preserves insertion order so that
// layering (including cycle breaking) is deterministic for a given corpus.
type Map struct {
	Names   []string
	Records map[string]*Record
}

// Build derives the dependency map for a set of models. Foreign entities not
// present in the index are recorded as unresolved and logged; they never
// become edges.
func Build(models []*semantic.Model, idx EntityIndex, logger *slog.Logger) *Map {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dm := &Map{Records: make(map[string]*Record, len(models))}
	for _, m := range models {
		dm.Names = append(dm.Names, m.Name)
		dm.Records[m.Name] = &Record{}
	}

	for _, m := range models {
		rec := dm.Records[m.Name]
		seen := make(map[string]bool)
		for _, fe := range m.ForeignEntities() {
			owner, ok := idx[fe.Name]
			if !ok {
				logger.Warn("unresolved foreign entity reference",
					"model", m.Name, "entity", fe.Name)
				rec.Unresolved = append(rec.Unresolved, fe.Name)
				continue
			}
			if owner.Model == m.Name || seen[owner.Model] {
				continue
			}
			seen[owner.Model] = true
			rec.DependsOn = append(rec.DependsOn, owner.Model)
		}
	}

	// Reverse edges.
	for _, name := range dm.Names {
		for _, dep := range dm.Records[name].DependsOn {
			if r, ok := dm.Records[dep]; ok {
				r.Dependents = append(r.Dependents, name)
			}
		}
	}

	return dm
}

// Dependents returns the transitive downstream closure of the given models,
// including the models themselves, in insertion order. Used to widen an
// incremental run to everything a change can affect.
func (dm *Map) Dependents(names []string) []string {
	affected := make(map[string]bool)

	var mark func(name string)
	mark = func(name string) {
		if affected[name] {
			return
		}
		affected[name] = true
		rec, ok := dm.Records[name]
		if !ok {
			return
		}
		for _, d := range rec.Dependents {
			mark(d)
		}
	}
	for _, n := range names {
		if _, ok := dm.Records[n]; ok {
			mark(n)
		}
	}

	out := make([]string, 0, len(affected))
	for _, n := range dm.Names {
		if affected[n] {
			out = append(out, n)
		}
	}
	return out
}

// Subset returns a dependency map restricted to the given models. Edges to
// models outside the subset are dropped so layering treats external
// dependencies as already satisfied.
func (dm *Map) Subset(names []string) *Map {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}

	sub := &Map{Records: make(map[string]*Record, len(names))}
	for _, n := range dm.Names {
		if !keep[n] {
			continue
		}
		src := dm.Records[n]
		rec := &Record{Unresolved: src.Unresolved}
		for _, d := range src.DependsOn {
			if keep[d] {
				rec.DependsOn = append(rec.DependsOn, d)
			}
		}
		for _, d := range src.Dependents {
			if keep[d] {
				rec.Dependents = append(rec.Dependents, d)
			}
		}
		sub.Names = append(sub.Names, n)
		sub.Records[n] = rec
	}
	return sub
}
