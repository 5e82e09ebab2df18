// Package artifact defines the translated data-model output types handed to
// the publisher.
package artifact

import (
	"fmt"

	"github.com/leapstack-labs/semabridge/internal/semantic"
)

// Model is the translated output for one semantic model.
type Model struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// DataModelID is the remote data-model identifier, assigned when the
	// artifact is first published.
	DataModelID string `json:"dataModelId,omitempty"`

	Elements      []Element      `json:"elements"`
	Columns       []Column       `json:"columns"`
	Metrics       []Metric       `json:"metrics"`
	Relationships []Relationship `json:"relationships"`
}

// Element is one table-like unit of the translated model.
type Element struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Column is one translated column of an element.
type Column struct {
	// ID is the generated column identifier ({model}__{name} for entity
	// key columns, the raw name otherwise).
	ID      string `json:"id"`
	Name    string `json:"name"`
	Formula string `json:"formula,omitempty"`
}

// Metric is one translated metric formula attached to the model.
type Metric struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Formula     string `json:"formula"`
	Description string `json:"description,omitempty"`
}

// Relationship links a foreign entity's key column to the owning model's
// primary key column.
type Relationship struct {
	// Name keys the relationship by generated column identifier.
	Name       string `json:"name"`
	FromColumn string `json:"fromColumn"`
	ToModel    string `json:"toModel"`
	ToColumn   string `json:"toColumn"`
}

// KeyColumnID builds the generated column identifier for an entity key.
func KeyColumnID(model, entity string) string {
	return fmt.Sprintf("%s__%s", model, entity)
}

// DeferredMetric is a metric that could not be placed on its source model
// and belongs in the shared cross-model catalog instead.
type DeferredMetric struct {
	Metric semantic.Metric `json:"metric"`
	Model  string          `json:"model"`
	Reason string          `json:"reason"`
}
