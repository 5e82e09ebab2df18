package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semabridge/internal/artifact"
	"github.com/leapstack-labs/semabridge/internal/engine"
	"github.com/leapstack-labs/semabridge/internal/state"
)

const corpusYAML = `
semantic_models:
  - name: orders
    entities:
      - name: order
        type: primary
        expr: order_id
    dimensions:
      - name: status
        type: categorical
    measures:
      - name: revenue
        agg: sum
        expr: amount

metrics:
  - name: total_revenue
    type: simple
    type_params:
      measure: revenue
`

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.yml"), []byte(corpusYAML), 0o644))

	eng, err := engine.New(engine.Config{
		ModelsDir:   dir,
		StatePath:   filepath.Join(t.TempDir(), "state.db"),
		Environment: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return New(eng, ":0", nil), eng
}

func TestServer_TriggerRun(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"environment":"test"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Run        *state.Run `json:"run"`
		Translated []string   `json:"translated"`
		Failed     int        `json:"failed"`
		Deferred   int        `json:"deferred"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, state.RunStatusCompleted, resp.Run.Status)
	assert.Equal(t, []string{"orders"}, resp.Translated)
	assert.Zero(t, resp.Failed)
}

func TestServer_TriggerRunEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_TriggerRunBadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetRun(t *testing.T) {
	srv, eng := newTestServer(t)
	h := srv.Routes()

	run, err := eng.Store().CreateRun("test")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got state.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
}

func TestServer_GetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListAndGetModels(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	// Publish via a run so the read endpoints have content.
	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var models []*state.PublishedModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	require.Len(t, models, 1)
	assert.Equal(t, "orders", models[0].Name)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var art artifact.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &art))
	assert.Equal(t, "orders", art.Name)
	require.Len(t, art.Metrics, 1)
	assert.Equal(t, "sum([amount])", art.Metrics[0].Formula)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DeferredMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/deferred", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
