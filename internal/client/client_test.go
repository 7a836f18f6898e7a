package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"career-pulse/internal/ml"
	"career-pulse/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServer serves an untrained model so predictions come from the fallback.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	predictor := ml.NewCareerPredictor(filepath.Join(t.TempDir(), "missing.bin"), nil)
	srv := httptest.NewServer(ml.NewModelServer(predictor, nil, nil, 0).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Predict(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL+"/", time.Second)

	out, err := c.Predict(context.Background(), map[string]float64{schema.Age: 25})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Index)
	assert.Equal(t, schema.Careers[0], out.Career)
	assert.True(t, out.Fallback)
	assert.NotEmpty(t, out.Warning)
	assert.Len(t, out.Probabilities, schema.NumCareers)
}

func TestClient_PredictVector(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, time.Second)

	v := schema.NewVector()
	v[0] = 30
	out, err := c.PredictVector(context.Background(), v)
	require.NoError(t, err)
	assert.Len(t, out.Top, 3)
}

func TestClient_PredictRejected(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, time.Second)

	_, err := c.Predict(context.Background(), map[string]float64{"Maths - Algebra": 4})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Age")
}

func TestClient_HealthAndInfo(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, 0)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.ModelLoaded)

	info, err := c.Info(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Fallback)
	assert.Equal(t, schema.FeatureNames(), info.Features)
	assert.Nil(t, info.ActiveVersion)
}

func TestClient_ServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second)

	_, err := c.Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)
}

func TestClient_Unreachable(t *testing.T) {
	srv := newServer(t)
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Health(context.Background())
	assert.Error(t, err)
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL, time.Second).Predict(ctx, map[string]float64{schema.Age: 25})
	assert.Error(t, err)
}
