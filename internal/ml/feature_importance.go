package ml

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"career-pulse/internal/schema"
)

// FeatureStats holds the importance of one feature.
type FeatureStats struct {
	Name             string  `json:"name"`
	Group            string  `json:"group"`
	ImpurityScore    float64 `json:"impurity_score"`
	PermutationScore float64 `json:"permutation_score"`
}

// FeatureImportance ranks schema features by how much the model relies on
// them.
type FeatureImportance struct {
	Stats         []FeatureStats `json:"features"`
	BaselineScore float64        `json:"baseline_score"`
}

// NewFeatureImportance wraps impurity importances in schema order.
func NewFeatureImportance(impurity []float64) (*FeatureImportance, error) {
	if len(impurity) != schema.NumFeatures {
		return nil, fmt.Errorf("%w: %d importances, want %d", schema.ErrInvalidVector, len(impurity), schema.NumFeatures)
	}
	fi := &FeatureImportance{Stats: make([]FeatureStats, schema.NumFeatures)}
	for i, f := range schema.Features {
		fi.Stats[i] = FeatureStats{
			Name:          f.Name,
			Group:         f.Group.String(),
			ImpurityScore: impurity[i],
		}
	}
	return fi, nil
}

// CalculatePermutationImportance measures the accuracy drop on (x, y) when
// each feature column is shuffled in turn. rng drives the shuffles.
func (fi *FeatureImportance) CalculatePermutationImportance(predictor Predictor, x [][]float64, y []int, rng *rand.Rand) error {
	if len(x) == 0 {
		return nil
	}
	if len(x) != len(y) {
		return fmt.Errorf("permutation importance: %d rows but %d labels", len(x), len(y))
	}

	baseline, err := accuracy(predictor, x, y)
	if err != nil {
		return err
	}
	fi.BaselineScore = baseline

	permuted := make([][]float64, len(x))
	for i := range x {
		permuted[i] = append([]float64(nil), x[i]...)
	}

	order := make([]int, len(x))
	for col := range fi.Stats {
		for i := range order {
			order[i] = i
		}
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		for i := range permuted {
			permuted[i][col] = x[order[i]][col]
		}

		score, err := accuracy(predictor, permuted, y)
		if err != nil {
			return err
		}
		fi.Stats[col].PermutationScore = baseline - score

		for i := range permuted {
			permuted[i][col] = x[i][col]
		}
	}
	return nil
}

func accuracy(predictor Predictor, x [][]float64, y []int) (float64, error) {
	correct := 0
	for i, row := range x {
		got, err := predictor.Predict(row)
		if err != nil {
			return 0, err
		}
		if got == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x)), nil
}

// GetTopFeatures returns the n features with the highest impurity score,
// ties in schema order.
func (fi *FeatureImportance) GetTopFeatures(n int) []FeatureStats {
	ranked := append([]FeatureStats(nil), fi.Stats...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ImpurityScore > ranked[j].ImpurityScore
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Save writes the importances as JSON.
func (fi *FeatureImportance) Save(path string) error {
	data, err := json.MarshalIndent(fi, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal importance: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write importance: %w", err)
	}
	return nil
}
