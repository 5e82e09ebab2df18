// Package semantic defines the semantic-model definition types and their
// YAML decoding. Definitions are read-only views over parsed input, scoped
// to one translation run.
package semantic

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EntityType describes the role an entity plays within a model.
type EntityType string

// Entity roles. Primary and unique entities define a model's join key;
// foreign entities reference another model's primary or unique key.
const (
	EntityPrimary EntityType = "primary"
	EntityForeign EntityType = "foreign"
	EntityUnique  EntityType = "unique"
)

// MetricType describes how a metric's formula is derived.
type MetricType string

// Metric types. Simple wraps one measure, derived is an expression over
// other metrics, ratio divides two metric references.
const (
	MetricSimple  MetricType = "simple"
	MetricDerived MetricType = "derived"
	MetricRatio   MetricType = "ratio"
)

// Model is a declarative semantic model: entities, dimensions and measures
// for one logical business concept.
type Model struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Entities    []Entity    `yaml:"entities"`
	Dimensions  []Dimension `yaml:"dimensions"`
	Measures    []Measure   `yaml:"measures"`

	// File is the path of the definition file the model was parsed from.
	// Set by the loader, not by YAML.
	File string `yaml:"-"`
}

// Entity is a named join-key role within a model.
type Entity struct {
	Name string     `yaml:"name"`
	Type EntityType `yaml:"type"`
	Expr string     `yaml:"expr"`
}

// Dimension is a named, typed attribute available for grouping and filtering.
type Dimension struct {
	Name       string           `yaml:"name"`
	Type       string           `yaml:"type"` // categorical, time
	Expr       string           `yaml:"expr"`
	TypeParams *DimensionParams `yaml:"type_params"`
}

// DimensionParams holds type-specific dimension parameters.
type DimensionParams struct {
	TimeGranularity string `yaml:"time_granularity"`
}

// Measure is a named aggregatable expression.
type Measure struct {
	Name             string `yaml:"name"`
	Agg              string `yaml:"agg"`
	Expr             string `yaml:"expr"`
	AggTimeDimension string `yaml:"agg_time_dimension"`
}

// Metric is a named business calculation layered on measures or other
// metrics.
type Metric struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Type        MetricType   `yaml:"type"`
	Label       string       `yaml:"label"`
	Filter      string       `yaml:"filter"`
	TypeParams  MetricParams `yaml:"type_params"`
}

// MetricParams holds the type-specific parameters of a metric.
type MetricParams struct {
	// Simple metrics.
	Measure *MetricInput `yaml:"measure"`

	// Derived metrics.
	Expr    string        `yaml:"expr"`
	Metrics []MetricInput `yaml:"metrics"`

	// Ratio metrics.
	Numerator   *MetricInput `yaml:"numerator"`
	Denominator *MetricInput `yaml:"denominator"`
}

// MetricInput is a reference to a measure or metric. In YAML it is either a
// bare name or a {name, alias, filter} mapping; both decode into this one
// canonical shape so resolution logic never branches on input form.
type MetricInput struct {
	Name   string `yaml:"name"`
	Alias  string `yaml:"alias"`
	Filter string `yaml:"filter"`
}

// UnmarshalYAML accepts both the scalar and the mapping form of a metric
// reference.
func (m *MetricInput) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		m.Name = node.Value
		return nil
	case yaml.MappingNode:
		type plain MetricInput
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*m = MetricInput(p)
		return nil
	default:
		return fmt.Errorf("metric reference must be a name or a mapping, got yaml kind %d", node.Kind)
	}
}

// PrimaryEntity returns the model's primary entity, or nil when the model
// declares none. Absence is a warning condition, not an error.
func (m *Model) PrimaryEntity() *Entity {
	for i := range m.Entities {
		if m.Entities[i].Type == EntityPrimary {
			return &m.Entities[i]
		}
	}
	return nil
}

// ForeignEntities returns the model's foreign entities in declaration order.
func (m *Model) ForeignEntities() []Entity {
	var out []Entity
	for _, e := range m.Entities {
		if e.Type == EntityForeign {
			out = append(out, e)
		}
	}
	return out
}

// Measure returns the named measure declared on the model, or nil.
func (m *Model) Measure(name string) *Measure {
	for i := range m.Measures {
		if m.Measures[i].Name == name {
			return &m.Measures[i]
		}
	}
	return nil
}

// HasEntity reports whether the model declares an entity with the given name.
func (m *Model) HasEntity(name string) bool {
	for _, e := range m.Entities {
		if e.Name == name {
			return true
		}
	}
	return false
}
