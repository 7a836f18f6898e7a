package evaluate

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"career-pulse/internal/dataset"
	"career-pulse/internal/ml"
	"career-pulse/internal/schema"
	"career-pulse/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ageCoded builds n rows per career whose age encodes the label.
func ageCoded(n int) *dataset.Dataset {
	ds := &dataset.Dataset{}
	for label := 0; label < schema.NumCareers; label++ {
		for i := 0; i < n; i++ {
			v := schema.NewVector()
			v[0] = float64(schema.GenAgeMin + label)
			ds.X = append(ds.X, v)
			ds.Y = append(ds.Y, label)
		}
	}
	return ds
}

type stubPredictor struct {
	predict func(v []float64) (int, error)
}

func (s stubPredictor) Predict(v []float64) (int, error) {
	return s.predict(v)
}

func (s stubPredictor) PredictProba(v []float64) ([]float64, error) {
	idx, err := s.predict(v)
	if err != nil {
		return nil, err
	}
	proba := make([]float64, schema.NumCareers)
	proba[idx] = 1
	return proba, nil
}

var (
	oracle   = stubPredictor{func(v []float64) (int, error) { return int(v[0]) - schema.GenAgeMin, nil }}
	constant = stubPredictor{func([]float64) (int, error) { return 0, nil }}
)

func loaderFor(ds *dataset.Dataset) *DataLoader {
	dl := NewDataLoader()
	dl.set(ds, "test")
	return dl
}

func TestEngine_PerfectPredictor(t *testing.T) {
	engine := NewEngine(oracle, loaderFor(ageCoded(3)))
	require.NoError(t, engine.Run(context.Background()))

	r := engine.GetResults()
	require.NotNil(t, r)
	assert.Equal(t, "test", r.Source)
	assert.Equal(t, 3*schema.NumCareers, r.Rows)
	assert.Equal(t, r.Rows, r.Correct)
	assert.Equal(t, 1.0, r.Accuracy)
	assert.InDelta(t, 1.0, r.MacroF1, 1e-12)
	assert.Empty(t, r.TopConfusions(5))
	for _, s := range r.Careers {
		assert.Equal(t, 3, s.Support)
		assert.Equal(t, 3, s.Predicted)
		assert.Equal(t, 1.0, s.Recall)
	}
	assert.False(t, r.EndTime.Before(r.StartTime))
}

func TestEngine_ConstantPredictor(t *testing.T) {
	engine := NewEngine(constant, loaderFor(ageCoded(2)))
	require.NoError(t, engine.Run(context.Background()))

	r := engine.GetResults()
	assert.Equal(t, 2, r.Correct)
	assert.InDelta(t, 1.0/float64(schema.NumCareers), r.Accuracy, 1e-12)

	first := r.Careers[0]
	assert.Equal(t, r.Rows, first.Predicted)
	assert.Equal(t, 1.0, first.Recall)
	assert.InDelta(t, 2.0/float64(r.Rows), first.Precision, 1e-12)
	for _, s := range r.Careers[1:] {
		assert.Zero(t, s.Predicted)
		assert.Zero(t, s.F1)
	}

	top := r.TopConfusions(3)
	require.Len(t, top, 3)
	for i, c := range top {
		assert.Equal(t, schema.Careers[i+1], c.Actual)
		assert.Equal(t, schema.Careers[0], c.Predicted)
		assert.Equal(t, 2, c.Count)
	}
}

func TestEngine_Errors(t *testing.T) {
	err := NewEngine(oracle, NewDataLoader()).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoData)

	boom := errors.New("boom")
	failing := stubPredictor{func([]float64) (int, error) { return 0, boom }}
	err = NewEngine(failing, loaderFor(ageCoded(1))).Run(context.Background())
	assert.ErrorIs(t, err, boom)

	outOfRange := stubPredictor{func([]float64) (int, error) { return schema.NumCareers, nil }}
	err = NewEngine(outOfRange, loaderFor(ageCoded(1))).Run(context.Background())
	assert.ErrorIs(t, err, schema.ErrUnknownCareer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngine(oracle, loaderFor(ageCoded(1)))
	assert.ErrorIs(t, engine.Run(ctx), context.Canceled)
	assert.Nil(t, engine.GetResults())
}

func TestEngine_FallbackBeatsChance(t *testing.T) {
	dl := NewDataLoader()
	dl.Generate(11, 20)
	engine := NewEngine(ml.NewFallbackPredictor(), dl)
	require.NoError(t, engine.Run(context.Background()))

	assert.Greater(t, engine.GetResults().Accuracy, 1.0/float64(schema.NumCareers))
}

func TestDataLoader_Sources(t *testing.T) {
	ds := dataset.NewGenerator(3, 2).Generate()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "rows.csv")
	f, err := os.Create(csvPath)
	require.NoError(t, err)
	require.NoError(t, ds.WriteCSV(f))
	require.NoError(t, f.Close())

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromCSV(csvPath))
	assert.Equal(t, ds.Len(), dl.Len())
	assert.Equal(t, "csv:"+csvPath, dl.Source)

	assert.Error(t, dl.LoadFromCSV(filepath.Join(dir, "missing.csv")))

	store, err := storage.New(dir)
	require.NoError(t, err)
	defer store.Close()
	assert.Error(t, dl.LoadFromStore(store))

	require.NoError(t, store.ReplaceDataset(ds, storage.Meta{Seed: 3, SamplesPerCareer: 2}))
	require.NoError(t, dl.LoadFromStore(store))
	assert.Equal(t, ds.Len(), dl.Len())

	dl.Generate(3, 2)
	assert.Equal(t, ds.X, dl.Dataset().X)
	assert.Contains(t, dl.Source, "seed=3")
}

func TestReporter_GenerateReport(t *testing.T) {
	engine := NewEngine(constant, loaderFor(ageCoded(2)))
	require.NoError(t, engine.Run(context.Background()))

	out := filepath.Join(t.TempDir(), "reports")
	reporter := NewReporter(engine.GetResults(), out)
	require.NoError(t, reporter.GenerateReport())

	summary, err := os.ReadFile(filepath.Join(out, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Rows: 54")
	assert.Contains(t, string(summary), "MOST FREQUENT CONFUSIONS")

	f, err := os.Open(filepath.Join(out, CareersFile))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, schema.NumCareers+1)
	assert.Equal(t, schema.Careers[0], records[1][0])

	m, err := os.Open(filepath.Join(out, ConfusionFile))
	require.NoError(t, err)
	defer m.Close()
	matrix, err := csv.NewReader(m).ReadAll()
	require.NoError(t, err)
	require.Len(t, matrix, schema.NumCareers+1)
	assert.Equal(t, "2", matrix[1][1])

	data, err := os.ReadFile(filepath.Join(out, JSONFile))
	require.NoError(t, err)
	var decoded struct {
		Rows          int         `json:"rows"`
		Accuracy      float64     `json:"accuracy"`
		TopConfusions []Confusion `json:"top_confusions"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 54, decoded.Rows)
	assert.Len(t, decoded.TopConfusions, topConfusions)

	var buf bytes.Buffer
	reporter.PrintSummary(&buf)
	assert.Contains(t, buf.String(), "Accuracy: 3.70%")
	assert.Contains(t, buf.String(), "Confused: "+schema.Careers[1])

	assert.ErrorIs(t, NewReporter(nil, out).GenerateReport(), ErrNoData)
}
