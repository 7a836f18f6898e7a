// Package ml serves career predictions from a trained model artifact.
// It includes the artifact-backed predictor, a heuristic fallback used when
// no usable artifact exists, a registry of trained model versions and an
// HTTP server exposing predictions.
package ml

// Predictor maps a feature vector in schema order to a career index.
// Implementations must reject vectors that do not match the schema.
type Predictor interface {
	// Predict returns the index of the most likely career.
	Predict(v []float64) (int, error)

	// PredictProba returns one probability per career, in career order.
	PredictProba(v []float64) ([]float64, error)
}

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLFallbackUseInc()
	MLModelAgeSet(float64)
	MLLatencyObserve(float64)
	MLPredictionScoresObserve(float64)
	CareerPredictionInc(career string)
}

// argmax returns the first index of the largest value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
