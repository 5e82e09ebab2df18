// Package state persists published data-model artifacts and run bookkeeping
// in a local SQLite database. Published artifacts supply cross-model entity
// resolution for later layers.
package state

import (
	"errors"
	"time"

	"github.com/leapstack-labs/semabridge/internal/artifact"
)

// ErrNotFound is returned when a keyed lookup matches nothing.
var ErrNotFound = errors.New("not found")

// RunStatus tracks the lifecycle of a translation run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one translation run.
type Run struct {
	ID          string     `json:"id"`
	Environment string     `json:"environment"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// PublishedModel is the stored read contract for a translated model: enough
// identity for a later layer to wire relationships against it.
type PublishedModel struct {
	Name        string   `json:"name"`
	DataModelID string   `json:"dataModelId"`
	ElementID   string   `json:"elementId"`
	Columns     []string `json:"columns"`
}

// Store is the persistence interface for published artifacts, deferred
// metrics and run records.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(env string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	PublishModel(m *artifact.Model) error
	GetPublishedModel(name string) (*PublishedModel, error)
	GetArtifact(name string) (*artifact.Model, error)
	ListPublishedModels() ([]*PublishedModel, error)

	SaveDeferredMetrics(metrics []artifact.DeferredMetric) error
	ListDeferredMetrics() ([]artifact.DeferredMetric, error)
}
