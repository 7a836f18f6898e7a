// Package dataset generates the synthetic labelled rows the career model is
// trained on.
//
// Every row starts as independent uniform draws over each feature's range.
// The row's career then rewrites a handful of fields from a narrower, higher
// range (see Overrides), which is the only signal a classifier can learn.
package dataset

import (
	"math/rand"

	"career-pulse/internal/schema"
)

// SamplesPerCareer is the default number of rows generated for each label.
const SamplesPerCareer = 150

// Row is one labelled training example.
type Row struct {
	Features schema.Vector `json:"features"`
	Label    int           `json:"label"`
}

// Generator draws synthetic rows from a seeded source.
type Generator struct {
	rng     *rand.Rand
	samples int
}

// NewGenerator creates a generator; the same seed always yields the same
// dataset. A non-positive samples count falls back to SamplesPerCareer.
func NewGenerator(seed int64, samples int) *Generator {
	if samples <= 0 {
		samples = SamplesPerCareer
	}
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		samples: samples,
	}
}

// Samples returns the number of rows generated per label.
func (g *Generator) Samples() int {
	return g.samples
}

// Generate produces samples rows for every career, grouped by label in
// schema.Careers order.
func (g *Generator) Generate() *Dataset {
	total := schema.NumCareers * g.samples
	ds := &Dataset{
		X: make([][]float64, 0, total),
		Y: make([]int, 0, total),
	}

	for label := 0; label < schema.NumCareers; label++ {
		for i := 0; i < g.samples; i++ {
			row := g.Row(label)
			ds.X = append(ds.X, row.Features)
			ds.Y = append(ds.Y, row.Label)
		}
	}
	return ds
}

// Row draws a single biased row for label.
func (g *Generator) Row(label int) Row {
	v := g.base()
	for _, r := range compiled[label] {
		g.apply(v, r)
	}
	return Row{Features: v, Label: label}
}

// base draws every feature uniformly over its generation range.
func (g *Generator) base() schema.Vector {
	v := schema.NewVector()
	for i, f := range schema.Features {
		switch f.Group {
		case schema.GroupAge:
			v[i] = float64(g.intn(schema.GenAgeMin, schema.GenAgeMax))
		case schema.GroupPreference:
			v[i] = float64(g.rng.Intn(2))
		default:
			v[i] = float64(g.intn(schema.RatingMin, schema.RatingMax))
		}
	}
	return v
}

func (g *Generator) apply(v schema.Vector, r rule) {
	switch r.kind {
	case RuleFlag:
		v[r.indices[0]] = 1
	case RuleOneOf:
		idx := r.indices[g.rng.Intn(len(r.indices))]
		v[idx] = float64(g.intn(r.lo, r.hi))
	default:
		v[r.indices[0]] = float64(g.intn(r.lo, r.hi))
	}
}

// intn returns a uniform integer in [lo, hi].
func (g *Generator) intn(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}
