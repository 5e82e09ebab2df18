package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semabridge/internal/artifact"
	"github.com/leapstack-labs/semabridge/internal/state"
)

const customersYAML = `
semantic_models:
  - name: customers
    description: Customer dimension model
    entities:
      - name: customer
        type: primary
        expr: customer_id
    dimensions:
      - name: region
        type: categorical
    measures:
      - name: customer_count
        agg: count
        expr: customer_id

metrics:
  - name: total_customers
    type: simple
    type_params:
      measure: customer_count
`

const ordersYAML = `
semantic_models:
  - name: orders
    entities:
      - name: order
        type: primary
        expr: order_id
      - name: customer
        type: foreign
    dimensions:
      - name: status
        type: categorical
      - name: full_status
        type: categorical
        expr: CONCAT(status, ' - ', channel)
    measures:
      - name: revenue
        agg: sum
        expr: amount

metrics:
  - name: total_revenue
    type: simple
    type_params:
      measure: revenue
  - name: shipped_revenue
    type: simple
    filter: "{{ Dimension('order__status') }} = 'shipped'"
    type_params:
      measure: revenue
  - name: foreign_metric
    type: simple
    type_params:
      measure: somewhere_else
`

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "customers.yml"), []byte(customersYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.yml"), []byte(ordersYAML), 0o644))
	return dir
}

func newTestEngine(t *testing.T, modelsDir string) *Engine {
	t.Helper()
	e, err := New(Config{
		ModelsDir:   modelsDir,
		StatePath:   filepath.Join(t.TempDir(), "state.db"),
		Environment: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestDiscover(t *testing.T) {
	e := newTestEngine(t, writeCorpus(t))

	result, err := e.Discover()
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesTotal)
	assert.Equal(t, 2, result.ModelsTotal)
	assert.Equal(t, 4, result.MetricsTotal)
	assert.False(t, result.HasErrors())

	require.Len(t, e.Models(), 2)
	assert.Equal(t, "customers", e.Models()[0].Name)
	assert.Equal(t, "orders", e.Models()[1].Name)

	layers := e.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, []string{"customers"}, layers[0].Models)
	assert.Equal(t, []string{"orders"}, layers[1].Models)
}

func TestDiscover_BadFileIsNonFatal(t *testing.T) {
	dir := writeCorpus(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("semantic_models: [nope"), 0o644))

	e := newTestEngine(t, dir)
	result, err := e.Discover()
	require.NoError(t, err)

	assert.True(t, result.HasErrors())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Path, "broken.yml")
	assert.Equal(t, 2, result.ModelsTotal)
}

func TestRun(t *testing.T) {
	e := newTestEngine(t, writeCorpus(t))
	_, err := e.Discover()
	require.NoError(t, err)

	result, err := e.Run(context.Background(), "test")
	require.NoError(t, err)
	require.NoError(t, result.Err())

	assert.Equal(t, []string{"customers", "orders"}, result.Translated)
	assert.Equal(t, state.RunStatusCompleted, result.Run.Status)
	assert.NotNil(t, result.Run.CompletedAt)

	// The orders artifact links back to the customers data model.
	customers, err := e.Store().GetPublishedModel("customers")
	require.NoError(t, err)
	assert.NotEmpty(t, customers.DataModelID)

	orders, err := e.Store().GetArtifact("orders")
	require.NoError(t, err)
	require.Len(t, orders.Relationships, 1)
	rel := orders.Relationships[0]
	assert.Equal(t, "orders__customer", rel.FromColumn)
	assert.Equal(t, customers.DataModelID, rel.ToModel)
	assert.Equal(t, "customers__customer", rel.ToColumn)

	// Entity key columns come first, then dimensions. Expression-backed
	// columns carry a translated formula.
	colByID := make(map[string]artifact.Column)
	for _, c := range orders.Columns {
		colByID[c.ID] = c
	}
	assert.Equal(t, "[order_id]", colByID["orders__order"].Formula)
	assert.Empty(t, colByID["status"].Formula)
	assert.Equal(t, "[status] & ' - ' & [channel]", colByID["full_status"].Formula)

	// Placeable metrics resolved, the cross-model one deferred.
	metricByName := make(map[string]artifact.Metric)
	for _, m := range orders.Metrics {
		metricByName[m.Name] = m
	}
	assert.Equal(t, "sum([amount])", metricByName["total_revenue"].Formula)
	assert.Equal(t, "sumif([amount], [status] = 'shipped')", metricByName["shipped_revenue"].Formula)
	assert.NotContains(t, metricByName, "foreign_metric")

	require.Len(t, result.Deferred, 1)
	assert.Equal(t, "foreign_metric", result.Deferred[0].Metric.Name)

	saved, err := e.Store().ListDeferredMetrics()
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "foreign_metric", saved[0].Metric.Name)
}

func TestRun_RequiresDiscovery(t *testing.T) {
	e := newTestEngine(t, writeCorpus(t))
	_, err := e.Run(context.Background(), "test")
	assert.Error(t, err)
}

func TestRun_ContextCancellation(t *testing.T) {
	e := newTestEngine(t, writeCorpus(t))
	_, err := e.Discover()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx, "test")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Translated)
}

func TestRunSelected(t *testing.T) {
	e := newTestEngine(t, writeCorpus(t))
	_, err := e.Discover()
	require.NoError(t, err)

	// Seed the store so the selected model can resolve its relationship.
	full, err := e.Run(context.Background(), "test")
	require.NoError(t, err)
	require.NoError(t, full.Err())

	result, err := e.RunSelected(context.Background(), "test", []string{"orders"}, false)
	require.NoError(t, err)
	require.NoError(t, result.Err())
	assert.Equal(t, []string{"orders"}, result.Translated)
}

func TestRunSelected_Downstream(t *testing.T) {
	e := newTestEngine(t, writeCorpus(t))
	_, err := e.Discover()
	require.NoError(t, err)

	result, err := e.RunSelected(context.Background(), "test", []string{"customers"}, true)
	require.NoError(t, err)
	require.NoError(t, result.Err())
	assert.Equal(t, []string{"customers", "orders"}, result.Translated)
}

func TestRun_DataModelIDStableAcrossRuns(t *testing.T) {
	e := newTestEngine(t, writeCorpus(t))
	_, err := e.Discover()
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "test")
	require.NoError(t, err)
	first, err := e.Store().GetPublishedModel("orders")
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "test")
	require.NoError(t, err)
	second, err := e.Store().GetPublishedModel("orders")
	require.NoError(t, err)

	assert.Equal(t, first.DataModelID, second.DataModelID)
}
