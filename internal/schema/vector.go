package schema

import (
	"fmt"
	"math"
	"sort"
)

// Vector is a feature vector in Features order.
type Vector []float64

// NewVector returns a zero vector of the correct length.
func NewVector() Vector {
	return make(Vector, NumFeatures)
}

// Set assigns a value by feature name.
func (v Vector) Set(name string, value float64) error {
	i, ok := featureIndex[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	v[i] = value
	return nil
}

// Get reads a value by feature name.
func (v Vector) Get(name string) (float64, error) {
	i, ok := featureIndex[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	return v[i], nil
}

// Map returns the vector keyed by feature name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v))
	for i, f := range Features {
		if i < len(v) {
			m[f.Name] = v[i]
		}
	}
	return m
}

// Validate checks length, integrality and the per-feature range of every value.
func Validate(v []float64) error {
	if len(v) != NumFeatures {
		return fmt.Errorf("%w: got %d values, want %d", ErrInvalidVector, len(v), NumFeatures)
	}
	for i, x := range v {
		f := Features[i]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: %q is not finite", ErrInvalidVector, f.Name)
		}
		if x != math.Trunc(x) {
			return fmt.Errorf("%w: %q must be a whole number, got %v", ErrInvalidVector, f.Name, x)
		}
		if x < f.Min() || x > f.Max() {
			return fmt.Errorf("%w: %q = %v outside [%v, %v]", ErrInvalidVector, f.Name, x, f.Min(), f.Max())
		}
	}
	return nil
}

// VectorFromMap builds a vector by feature name. Age is required; other
// missing features default to zero. Unknown names are rejected rather than
// ignored so that a renamed form field cannot silently drop a signal.
func VectorFromMap(values map[string]float64) (Vector, error) {
	if _, ok := values[Age]; !ok {
		return nil, fmt.Errorf("%w: %q is required", ErrInvalidVector, Age)
	}

	var unknown []string
	v := NewVector()
	for name, x := range values {
		i, ok := featureIndex[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		v[i] = x
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, unknown)
	}

	if err := Validate(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Equal reports whether names matches FeatureNames exactly.
func Equal(names []string) bool {
	if len(names) != len(Features) {
		return false
	}
	for i, f := range Features {
		if names[i] != f.Name {
			return false
		}
	}
	return true
}

// EqualCareers reports whether careers matches Careers exactly.
func EqualCareers(careers []string) bool {
	if len(careers) != len(Careers) {
		return false
	}
	for i, c := range Careers {
		if careers[i] != c {
			return false
		}
	}
	return true
}
