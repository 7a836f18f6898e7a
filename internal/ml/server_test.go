package ml

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"career-pulse/internal/artifact"
	"career-pulse/internal/dataset"
	"career-pulse/internal/forest"
	"career-pulse/internal/metrics"
	"career-pulse/internal/schema"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, trained bool) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.bin")
	if trained {
		path, _, _ = trainArtifact(t, dir)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	predictor := NewCareerPredictor(path, metrics.NewWrapper(m))

	mm, err := NewModelManager(filepath.Join(dir, "models"))
	require.NoError(t, err)
	v, err := mm.AddVersion("v1", path, ModelMetrics{Trees: 5})
	require.NoError(t, err)
	require.NoError(t, mm.ActivateVersion(v.Version))

	srv := httptest.NewServer(NewModelServer(predictor, mm, reg, 0).Handler())
	t.Cleanup(srv.Close)
	return srv, reg
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestModelServer_PredictByFeatures(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp := postJSON(t, srv.URL+"/predict", PredictionRequest{
		Features:  map[string]float64{schema.Age: 25, "Science - Biology": 5},
		RequestID: "req-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out PredictionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "req-1", out.RequestID)
	assert.False(t, out.Fallback)
	assert.Empty(t, out.Warning)
	assert.Equal(t, schema.Careers[out.Index], out.Career)
	require.Len(t, out.Probabilities, schema.NumCareers)
	require.Len(t, out.Top, topN)
	assert.Equal(t, out.Career, out.Top[0].Career)
	assert.GreaterOrEqual(t, out.Top[0].Probability, out.Top[1].Probability)
}

func TestModelServer_PredictByVector(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp := postJSON(t, srv.URL+"/predict", PredictionRequest{Vector: youngProfile()})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out PredictionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Fallback)
	assert.NotEmpty(t, out.Warning)
	assert.Equal(t, 0, out.Index)

	// A request without an id gets one assigned
	_, err := uuid.Parse(out.RequestID)
	assert.NoError(t, err)
}

func TestModelServer_PredictRejects(t *testing.T) {
	srv, _ := newTestServer(t, true)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"empty", `{}`, http.StatusBadRequest},
		{"both", `{"features":{"Age":20},"vector":[1]}`, http.StatusBadRequest},
		{"unknown field", `{"featurez":{"Age":20}}`, http.StatusBadRequest},
		{"short vector", `{"vector":[20,1,2]}`, http.StatusBadRequest},
		{"missing age", `{"features":{"Maths - Algebra":3}}`, http.StatusBadRequest},
		{"unknown feature", `{"features":{"Age":20,"Juggling":5}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/predict", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			var e ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			assert.NotEmpty(t, e.Error)
		})
	}

	resp, err := http.Get(srv.URL + "/predict")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestModelServer_Health(t *testing.T) {
	for _, trained := range []bool{true, false} {
		srv, _ := newTestServer(t, trained)

		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var h HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
		assert.Equal(t, trained, h.ModelLoaded)
		if trained {
			assert.Equal(t, "ok", h.Status)
			assert.Empty(t, h.Warning)
		} else {
			assert.Equal(t, "degraded", h.Status)
			assert.NotEmpty(t, h.Warning)
		}
	}
}

func TestModelServer_ModelInfo(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/model/info")
	require.NoError(t, err)
	defer resp.Body.Close()

	var info InfoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, 5, info.Trees)
	assert.Equal(t, schema.FeatureNames(), info.Features)
	require.NotNil(t, info.ActiveVersion)
	assert.Equal(t, "v1", info.ActiveVersion.Version)
}

func TestModelServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, false)

	postJSON(t, srv.URL+"/predict", PredictionRequest{Vector: youngProfile()})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "ml_predictions_total 1")
	assert.Contains(t, text, "ml_fallback_use_total 1")
	assert.Contains(t, text, `career_predictions_total{career="`+schema.Careers[0]+`"} 1`)
}

func TestModelServer_ReloadModelFollowsRegistry(t *testing.T) {
	dir := t.TempDir()
	v1Path, _, _ := trainArtifact(t, dir)
	modelsDir := filepath.Join(dir, "models")

	mm, err := NewModelManager(modelsDir)
	require.NoError(t, err)
	_, err = mm.AddVersion("v1", v1Path, ModelMetrics{Trees: 5})
	require.NoError(t, err)
	require.NoError(t, mm.ActivateVersion("v1"))

	predictor := NewCareerPredictor(v1Path, nil)
	server := NewModelServer(predictor, mm, nil, 0)
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	// A separate process trains and activates v2
	ds := dataset.NewGenerator(7, 4).Generate()
	p := forest.DefaultParams()
	p.Trees = 3
	f, err := forest.Fit(ds.X, ds.Y, schema.NumCareers, p)
	require.NoError(t, err)
	v2Path := filepath.Join(modelsDir, "v2.bin")
	require.NoError(t, artifact.Save(v2Path, artifact.New(f)))

	other, err := NewModelManager(modelsDir)
	require.NoError(t, err)
	_, err = other.AddVersion("v2", v2Path, ModelMetrics{Trees: 3})
	require.NoError(t, err)
	require.NoError(t, other.ActivateVersion("v2"))

	path, err := server.ReloadModel()
	require.NoError(t, err)
	assert.Equal(t, v2Path, path)

	resp, err := http.Get(srv.URL + "/model/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	var info InfoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, 3, info.Trees)
	assert.Equal(t, v2Path, info.Path)
	require.NotNil(t, info.ActiveVersion)
	assert.Equal(t, "v2", info.ActiveVersion.Version)

	// A broken active artifact keeps the served model
	require.NoError(t, other.ActivateVersion("v1"))
	require.NoError(t, os.WriteFile(v1Path, []byte("garbage"), 0o600))
	_, err = server.ReloadModel()
	assert.ErrorIs(t, err, artifact.ErrCorrupt)
	assert.Equal(t, 3, predictor.Info().Trees)
	assert.Equal(t, v2Path, predictor.Info().Path)
}

func TestModelServer_ReloadModelWithoutRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, artifact.DefaultPath)
	predictor := NewCareerPredictor(path, nil)
	server := NewModelServer(predictor, nil, nil, 0)

	_, err := server.ReloadModel()
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	trainArtifact(t, dir)
	got, err := server.ReloadModel()
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.True(t, predictor.Available())
}

func TestRank(t *testing.T) {
	proba := make([]float64, schema.NumCareers)
	proba[4] = 0.5
	proba[2] = 0.25
	proba[9] = 0.25

	top := rank(proba, 3)
	require.Len(t, top, 3)
	assert.Equal(t, schema.Careers[4], top[0].Career)
	assert.Equal(t, schema.Careers[2], top[1].Career)
	assert.Equal(t, schema.Careers[9], top[2].Career)

	assert.Len(t, rank(proba, 100), schema.NumCareers)
}
