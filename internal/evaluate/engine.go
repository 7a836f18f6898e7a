// Package evaluate scores a career predictor against labelled rows and
// reports overall accuracy, per-career precision and recall, and the
// confusion matrix.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"career-pulse/internal/ml"
	"career-pulse/internal/schema"

	"github.com/rs/zerolog/log"
)

// ErrNoData is returned when the engine runs without rows.
var ErrNoData = errors.New("evaluate: no rows loaded")

// ctxCheckEvery is how many rows are scored between context checks.
const ctxCheckEvery = 256

// CareerStats holds the per-career results.
type CareerStats struct {
	Career        string  `json:"career"`
	Support       int     `json:"support"`
	Predicted     int     `json:"predicted"`
	TruePositives int     `json:"true_positives"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	F1            float64 `json:"f1"`
}

// Confusion is one off-diagonal cell of the confusion matrix.
type Confusion struct {
	Actual    string `json:"actual"`
	Predicted string `json:"predicted"`
	Count     int    `json:"count"`
}

// Results holds evaluation results
type Results struct {
	Source    string        `json:"source"`
	Rows      int           `json:"rows"`
	Correct   int           `json:"correct"`
	Accuracy  float64       `json:"accuracy"`
	MacroF1   float64       `json:"macro_f1"`
	Careers   []CareerStats `json:"careers"`
	Matrix    [][]int       `json:"confusion_matrix"` // [actual][predicted]
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
}

// TopConfusions returns the n most frequent misclassifications, largest
// first. Ties keep matrix order.
func (r *Results) TopConfusions(n int) []Confusion {
	var out []Confusion
	for actual, row := range r.Matrix {
		for predicted, count := range row {
			if actual == predicted || count == 0 {
				continue
			}
			out = append(out, Confusion{
				Actual:    schema.Careers[actual],
				Predicted: schema.Careers[predicted],
				Count:     count,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Engine replays labelled rows through a predictor.
type Engine struct {
	predictor ml.Predictor
	data      *DataLoader
	results   *Results
}

// NewEngine creates a new evaluation engine
func NewEngine(predictor ml.Predictor, data *DataLoader) *Engine {
	return &Engine{
		predictor: predictor,
		data:      data,
	}
}

// Run scores every loaded row. A row the predictor rejects aborts the run.
func (e *Engine) Run(ctx context.Context) error {
	ds := e.data.Dataset()
	if ds == nil || ds.Len() == 0 {
		return ErrNoData
	}

	log.Info().
		Str("source", e.data.Source).
		Int("rows", ds.Len()).
		Msg("Starting evaluation")

	matrix := make([][]int, schema.NumCareers)
	for i := range matrix {
		matrix[i] = make([]int, schema.NumCareers)
	}

	results := &Results{
		Source:    e.data.Source,
		Rows:      ds.Len(),
		Matrix:    matrix,
		StartTime: time.Now(),
	}
	for i, x := range ds.X {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		predicted, err := e.predictor.Predict(x)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if predicted < 0 || predicted >= schema.NumCareers {
			return fmt.Errorf("row %d: %w: index %d", i, schema.ErrUnknownCareer, predicted)
		}
		matrix[ds.Y[i]][predicted]++
	}
	results.EndTime = time.Now()

	e.calculateMetrics(results)
	e.results = results

	log.Info().
		Float64("accuracy", results.Accuracy).
		Float64("macro_f1", results.MacroF1).
		Dur("elapsed", results.EndTime.Sub(results.StartTime)).
		Msg("Evaluation completed")
	return nil
}

// GetResults returns the results of the last run, or nil.
func (e *Engine) GetResults() *Results {
	return e.results
}

func (e *Engine) calculateMetrics(r *Results) {
	r.Careers = make([]CareerStats, schema.NumCareers)
	predicted := make([]int, schema.NumCareers)
	for _, row := range r.Matrix {
		for p, count := range row {
			predicted[p] += count
		}
	}

	var f1Sum float64
	for c, row := range r.Matrix {
		s := CareerStats{
			Career:        schema.Careers[c],
			Predicted:     predicted[c],
			TruePositives: row[c],
		}
		for _, count := range row {
			s.Support += count
		}
		s.Precision = ratio(s.TruePositives, s.Predicted)
		s.Recall = ratio(s.TruePositives, s.Support)
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		r.Correct += s.TruePositives
		f1Sum += s.F1
		r.Careers[c] = s
	}

	r.Accuracy = ratio(r.Correct, r.Rows)
	r.MacroF1 = f1Sum / float64(schema.NumCareers)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
