// Package forest implements a seeded random-forest classifier: bootstrap
// aggregated CART trees split on Gini impurity over a random feature subset
// per node, with probability averaging at prediction time.
//
// Every tree draws from its own source derived from Params.Seed, so a fit on
// identical data is bit-for-bit reproducible.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	ErrEmptyInput    = errors.New("forest: empty training set")
	ErrFeatureCount  = errors.New("forest: feature count mismatch")
	ErrLabelRange    = errors.New("forest: label out of range")
	ErrInvalidParams = errors.New("forest: invalid parameters")
	ErrCorrupt       = errors.New("forest: corrupt model")
)

// Params are the forest hyperparameters. The defaults mirror the usual
// random forest defaults: 100 trees, unlimited depth, bootstrap sampling and
// sqrt(features) candidates per split.
type Params struct {
	Trees int `json:"trees" yaml:"trees"`
	// MaxDepth of 0 grows trees until leaves are pure.
	MaxDepth int `json:"max_depth" yaml:"maxDepth"`
	// MinSamplesSplit is the smallest node that may be split; at least 2.
	MinSamplesSplit int `json:"min_samples_split" yaml:"minSamplesSplit"`
	// MaxFeatures of 0 means sqrt(features) candidates per split.
	MaxFeatures int   `json:"max_features" yaml:"maxFeatures"`
	Bootstrap   bool  `json:"bootstrap" yaml:"bootstrap"`
	Seed        int64 `json:"seed" yaml:"seed"`
}

// DefaultParams returns the default hyperparameters with a fixed seed.
func DefaultParams() Params {
	return Params{
		Trees:           100,
		MinSamplesSplit: 2,
		Bootstrap:       true,
		Seed:            42,
	}
}

func (p Params) validate() error {
	switch {
	case p.Trees <= 0:
		return fmt.Errorf("%w: trees must be positive, got %d", ErrInvalidParams, p.Trees)
	case p.MaxDepth < 0:
		return fmt.Errorf("%w: max depth must be >= 0, got %d", ErrInvalidParams, p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("%w: min samples split must be >= 2, got %d", ErrInvalidParams, p.MinSamplesSplit)
	case p.MaxFeatures < 0:
		return fmt.Errorf("%w: max features must be >= 0, got %d", ErrInvalidParams, p.MaxFeatures)
	}
	return nil
}

// Forest is a fitted classifier. Fields are exported for gob encoding.
type Forest struct {
	NumFeatures int
	NumClasses  int
	Params      Params
	Trees       []Tree
	Importances []float64
	OOB         float64
}

// Fit trains a forest on x (rows of equal length) and labels y in
// [0, nClasses).
func Fit(x [][]float64, y []int, nClasses int, params Params) (*Forest, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 || len(x[0]) == 0 {
		return nil, ErrEmptyInput
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrFeatureCount, len(x), len(y))
	}
	if nClasses <= 0 {
		return nil, fmt.Errorf("%w: classes must be positive, got %d", ErrInvalidParams, nClasses)
	}

	nFeatures := len(x[0])
	for i, row := range x {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureCount, i, len(row), nFeatures)
		}
		if y[i] < 0 || y[i] >= nClasses {
			return nil, fmt.Errorf("%w: row %d label %d", ErrLabelRange, i, y[i])
		}
	}

	maxFeatures := params.MaxFeatures
	switch {
	case maxFeatures == 0:
		maxFeatures = int(math.Sqrt(float64(nFeatures)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	case maxFeatures > nFeatures:
		maxFeatures = nFeatures
	}

	f := &Forest{
		NumFeatures: nFeatures,
		NumClasses:  nClasses,
		Params:      params,
		Trees:       make([]Tree, params.Trees),
		Importances: make([]float64, nFeatures),
	}

	seeds := rand.New(rand.NewSource(params.Seed))
	oobVotes := make([][]float64, len(x))
	inBag := make([]bool, len(x))

	for t := range f.Trees {
		rng := rand.New(rand.NewSource(seeds.Int63()))

		samples := make([]int, len(x))
		for i := range inBag {
			inBag[i] = false
		}
		for i := range samples {
			if params.Bootstrap {
				samples[i] = rng.Intn(len(x))
			} else {
				samples[i] = i
			}
			inBag[samples[i]] = true
		}

		b := &builder{
			x:           x,
			y:           y,
			nClasses:    nClasses,
			params:      params,
			maxFeatures: maxFeatures,
			rng:         rng,
		}
		f.Trees[t] = b.build(samples)
		addNormalized(f.Importances, b.importances)

		if !params.Bootstrap {
			continue
		}
		for i, in := range inBag {
			if in {
				continue
			}
			if oobVotes[i] == nil {
				oobVotes[i] = make([]float64, nClasses)
			}
			for c, p := range f.Trees[t].proba(x[i]) {
				oobVotes[i][c] += p
			}
		}
	}

	normalize(f.Importances)
	f.OOB = oobScore(oobVotes, y)
	return f, nil
}

// PredictProba returns the mean class distribution over all trees.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.NumFeatures {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrFeatureCount, len(x), f.NumFeatures)
	}
	proba := make([]float64, f.NumClasses)
	for i := range f.Trees {
		for c, p := range f.Trees[i].proba(x) {
			proba[c] += p
		}
	}
	n := float64(len(f.Trees))
	for c := range proba {
		proba[c] /= n
	}
	return proba, nil
}

// Predict returns the most probable class; ties go to the lowest index.
func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

// Score returns the accuracy of the forest on x, y.
func (f *Forest) Score(x [][]float64, y []int) (float64, error) {
	if len(x) == 0 {
		return 0, nil
	}
	correct := 0
	for i, row := range x {
		p, err := f.Predict(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if p == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x)), nil
}

// OOBScore returns the out-of-bag accuracy measured during Fit, or 0 without
// bootstrap sampling.
func (f *Forest) OOBScore() float64 {
	return f.OOB
}

// FeatureImportances returns the mean impurity decrease per feature,
// normalised to sum to 1.
func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, len(f.Importances))
	copy(out, f.Importances)
	return out
}

// Validate checks the structural integrity of a decoded forest.
func (f *Forest) Validate() error {
	if f.NumFeatures <= 0 || f.NumClasses <= 0 || len(f.Trees) == 0 {
		return fmt.Errorf("%w: %d features, %d classes, %d trees", ErrCorrupt, f.NumFeatures, f.NumClasses, len(f.Trees))
	}
	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrCorrupt, t)
		}
		for i, n := range tree.Nodes {
			if n.Leaf() {
				if len(n.Dist) != f.NumClasses {
					return fmt.Errorf("%w: tree %d leaf %d has %d classes", ErrCorrupt, t, i, len(n.Dist))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NumFeatures ||
				n.Left <= i || n.Left >= len(tree.Nodes) ||
				n.Right <= i || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("%w: tree %d node %d", ErrCorrupt, t, i)
			}
		}
	}
	return nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func addNormalized(dst, src []float64) {
	var sum float64
	for _, v := range src {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i, v := range src {
		dst[i] += v / sum
	}
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

func oobScore(votes [][]float64, y []int) float64 {
	var n, correct int
	for i, v := range votes {
		if v == nil {
			continue
		}
		n++
		if argmax(v) == y[i] {
			correct++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(correct) / float64(n)
}
