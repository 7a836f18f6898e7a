package ml

import (
	"fmt"
	"math"

	"career-pulse/internal/dataset"
	"career-pulse/internal/schema"
)

// FallbackPredictor implements a simple heuristic-based fallback when no
// trained model is available. It scores each career by how many of the
// career's generation rules the vector satisfies, so it agrees with the
// synthetic data on clear-cut profiles and needs no training.
type FallbackPredictor struct {
	rules [][]dataset.Rule
}

// NewFallbackPredictor creates a new fallback predictor
func NewFallbackPredictor() *FallbackPredictor {
	rules := make([][]dataset.Rule, schema.NumCareers)
	for i := range rules {
		rules[i] = dataset.RulesFor(i)
	}
	return &FallbackPredictor{rules: rules}
}

// Predict returns the best-scoring career. A vector that satisfies no rule
// at all, such as an all-zero profile with only age set, maps to index 0.
func (p *FallbackPredictor) Predict(v []float64) (int, error) {
	proba, err := p.PredictProba(v)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

// PredictProba normalizes the per-career scores into probabilities. When
// every score is zero the distribution is uniform.
func (p *FallbackPredictor) PredictProba(v []float64) ([]float64, error) {
	if err := schema.Validate(v); err != nil {
		return nil, err
	}

	proba := make([]float64, schema.NumCareers)
	var total float64
	for c, rules := range p.rules {
		proba[c] = p.score(v, rules)
		total += proba[c]
	}

	if total == 0 {
		for c := range proba {
			proba[c] = 1 / float64(len(proba))
		}
		return proba, nil
	}
	for c := range proba {
		proba[c] /= total
	}
	return proba, nil
}

// score averages the rule matches of one career.
func (p *FallbackPredictor) score(v []float64, rules []dataset.Rule) float64 {
	if len(rules) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rules {
		sum += match(v, r)
	}
	return sum / float64(len(rules))
}

// match is 1 for a satisfied rule, 0.5 for an answered value one step
// outside a range and 0 otherwise.
func match(v []float64, r dataset.Rule) float64 {
	switch r.Kind {
	case dataset.RuleFlag:
		if v[schema.MustIndex(r.Field)] == 1 {
			return 1
		}
		return 0
	case dataset.RuleOneOf:
		var best float64
		for _, name := range r.Fields {
			best = math.Max(best, rangeMatch(v[schema.MustIndex(name)], r.Lo, r.Hi))
		}
		return best
	case dataset.RuleRange:
		return rangeMatch(v[schema.MustIndex(r.Field)], r.Lo, r.Hi)
	default:
		panic(fmt.Sprintf("ml: unknown rule kind %d", r.Kind))
	}
}

// rangeMatch scores x against [lo, hi]. A zero rating is unanswered and
// earns no partial credit.
func rangeMatch(x float64, lo, hi int) float64 {
	var d float64
	switch {
	case x < float64(lo):
		d = float64(lo) - x
	case x > float64(hi):
		d = x - float64(hi)
	}
	switch {
	case d == 0:
		return 1
	case d <= 1 && x != 0:
		return 0.5
	default:
		return 0
	}
}
