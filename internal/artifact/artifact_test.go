package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"career-pulse/internal/dataset"
	"career-pulse/internal/forest"
	"career-pulse/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainSmall(t *testing.T) (*forest.Forest, *dataset.Dataset) {
	t.Helper()
	ds := dataset.NewGenerator(42, 10).Generate()
	p := forest.DefaultParams()
	p.Trees = 5
	f, err := forest.Fit(ds.X, ds.Y, schema.NumCareers, p)
	require.NoError(t, err)
	return f, ds
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	f, ds := trainSmall(t)
	path := filepath.Join(t.TempDir(), DefaultPath)

	require.NoError(t, Save(path, New(f)))

	e, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, schema.Version, e.SchemaVersion)
	assert.Equal(t, schema.FeatureNames(), e.FeatureNames)
	assert.False(t, e.TrainedAt.IsZero())

	probe := schema.NewVector()
	probe[0] = 25
	probes := append([][]float64{probe}, ds.X[:50]...)
	for _, x := range probes {
		want, err := f.Predict(x)
		require.NoError(t, err)
		got, err := e.Forest.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSave_OverwritesAndLeavesNoTemp(t *testing.T) {
	f, _ := trainSmall(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
	require.NoError(t, Save(path, New(f)))

	_, err := Load(path)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model.bin", entries[0].Name())
}

func TestSave_FailureLeavesExistingArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))

	// The target directory does not exist.
	err := Save(filepath.Join(dir, "missing", "model.bin"), New(&forest.Forest{}))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_RenameFailureRemovesTemp(t *testing.T) {
	f, _ := trainSmall(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "occupied"), 0o755))

	require.Error(t, Save(path, New(f)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecode_SchemaMismatch(t *testing.T) {
	f, _ := trainSmall(t)

	tests := []struct {
		name   string
		mutate func(e *Envelope)
		want   error
	}{
		{"version", func(e *Envelope) { e.SchemaVersion++ }, ErrSchemaMismatch},
		{"reordered features", func(e *Envelope) {
			e.FeatureNames[1], e.FeatureNames[2] = e.FeatureNames[2], e.FeatureNames[1]
		}, ErrSchemaMismatch},
		{"dropped feature", func(e *Envelope) { e.FeatureNames = e.FeatureNames[:schema.NumFeatures-1] }, ErrSchemaMismatch},
		{"careers", func(e *Envelope) { e.Careers = e.Careers[1:] }, ErrSchemaMismatch},
		{"magic", func(e *Envelope) { e.Magic = "other" }, ErrCorrupt},
		{"no forest", func(e *Envelope) { e.Forest = nil }, ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(f)
			tt.mutate(e)

			var buf bytes.Buffer
			require.NoError(t, e.Encode(&buf))

			_, err := Decode(&buf)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheck_ForestShape(t *testing.T) {
	ds := dataset.NewGenerator(1, 2).Generate()
	p := forest.DefaultParams()
	p.Trees = 2

	// Trained over more classes than the schema declares.
	f, err := forest.Fit(ds.X, ds.Y, schema.NumCareers+1, p)
	require.NoError(t, err)
	assert.ErrorIs(t, New(f).Check(), ErrSchemaMismatch)
}
