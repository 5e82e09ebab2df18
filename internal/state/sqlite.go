package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/semabridge/internal/artifact"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- Run operations ---

// CreateRun creates a new translation run.
func (s *SQLiteStore) CreateRun(env string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:          uuid.New().String(),
		Environment: env,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, environment, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Environment, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run completed or failed.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, environment, status, started_at, completed_at, error FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Environment, &run.Status, &run.StartedAt, &completedAt, &errMsg)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, environment, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Environment, &run.Status, &run.StartedAt, &completedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- Published model operations ---

// PublishModel upserts a translated model artifact. A data-model ID is
// assigned on first publish and preserved on updates so downstream
// references stay stable.
func (s *SQLiteStore) PublishModel(m *artifact.Model) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	existing, err := s.GetPublishedModel(m.Name)
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("failed to check existing model: %w", err)
	}

	if existing != nil {
		m.DataModelID = existing.DataModelID
	} else if m.DataModelID == "" {
		m.DataModelID = uuid.New().String()
	}

	elementID := ""
	if len(m.Elements) > 0 {
		elementID = m.Elements[0].ID
	}

	columns := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		columns = append(columns, c.ID)
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to serialize columns: %w", err)
	}
	artifactJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize artifact: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO published_models (name, data_model_id, element_id, columns, artifact, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   data_model_id = excluded.data_model_id,
		   element_id = excluded.element_id,
		   columns = excluded.columns,
		   artifact = excluded.artifact,
		   updated_at = excluded.updated_at`,
		m.Name, m.DataModelID, elementID, string(columnsJSON), string(artifactJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to publish model: %w", err)
	}

	s.logger.Debug("published model artifact", "model", m.Name, "data_model_id", m.DataModelID)
	return nil
}

// GetPublishedModel returns the read contract for a published model, or
// ErrNotFound.
func (s *SQLiteStore) GetPublishedModel(name string) (*PublishedModel, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	pm := &PublishedModel{Name: name}
	var columnsJSON string
	err := s.db.QueryRow(
		`SELECT data_model_id, element_id, columns FROM published_models WHERE name = ?`, name,
	).Scan(&pm.DataModelID, &pm.ElementID, &columnsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get published model: %w", err)
	}

	if err := json.Unmarshal([]byte(columnsJSON), &pm.Columns); err != nil {
		return nil, fmt.Errorf("failed to decode columns: %w", err)
	}
	return pm, nil
}

// GetArtifact returns the full stored artifact for a published model, or
// ErrNotFound.
func (s *SQLiteStore) GetArtifact(name string) (*artifact.Model, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var artifactJSON string
	err := s.db.QueryRow(
		`SELECT artifact FROM published_models WHERE name = ?`, name,
	).Scan(&artifactJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	var m artifact.Model
	if err := json.Unmarshal([]byte(artifactJSON), &m); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return &m, nil
}

// ListPublishedModels returns the read contract for every published model.
func (s *SQLiteStore) ListPublishedModels() ([]*PublishedModel, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT name, data_model_id, element_id, columns FROM published_models ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list published models: %w", err)
	}
	defer rows.Close()

	var models []*PublishedModel
	for rows.Next() {
		pm := &PublishedModel{}
		var columnsJSON string
		if err := rows.Scan(&pm.Name, &pm.DataModelID, &pm.ElementID, &columnsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan published model: %w", err)
		}
		if err := json.Unmarshal([]byte(columnsJSON), &pm.Columns); err != nil {
			return nil, fmt.Errorf("failed to decode columns: %w", err)
		}
		models = append(models, pm)
	}
	return models, rows.Err()
}

// --- Deferred metric operations ---

// SaveDeferredMetrics upserts deferred cross-model metrics into the shared
// catalog.
func (s *SQLiteStore) SaveDeferredMetrics(metrics []artifact.DeferredMetric) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, dm := range metrics {
		definition, err := json.Marshal(dm.Metric)
		if err != nil {
			return fmt.Errorf("failed to serialize metric %q: %w", dm.Metric.Name, err)
		}
		_, err = tx.Exec(
			`INSERT INTO deferred_metrics (name, model, reason, definition, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(name, model) DO UPDATE SET
			   reason = excluded.reason,
			   definition = excluded.definition,
			   updated_at = excluded.updated_at`,
			dm.Metric.Name, dm.Model, dm.Reason, string(definition), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to save deferred metric %q: %w", dm.Metric.Name, err)
		}
	}

	return tx.Commit()
}

// ListDeferredMetrics returns the shared cross-model metric catalog.
func (s *SQLiteStore) ListDeferredMetrics() ([]artifact.DeferredMetric, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT name, model, reason, definition FROM deferred_metrics ORDER BY model, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deferred metrics: %w", err)
	}
	defer rows.Close()

	var out []artifact.DeferredMetric
	for rows.Next() {
		var dm artifact.DeferredMetric
		var name, definition string
		if err := rows.Scan(&name, &dm.Model, &dm.Reason, &definition); err != nil {
			return nil, fmt.Errorf("failed to scan deferred metric: %w", err)
		}
		if err := json.Unmarshal([]byte(definition), &dm.Metric); err != nil {
			return nil, fmt.Errorf("failed to decode deferred metric %q: %w", name, err)
		}
		out = append(out, dm)
	}
	return out, rows.Err()
}
