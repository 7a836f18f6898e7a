package ml

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"career-pulse/internal/artifact"
	"career-pulse/internal/schema"

	"github.com/rs/zerolog/log"
)

// Prediction is a scored career for one applicant.
type Prediction struct {
	Index         int       `json:"index"`
	Career        string    `json:"career"`
	Probabilities []float64 `json:"probabilities"`
	Fallback      bool      `json:"fallback"`
}

// Score returns the probability of the predicted career.
func (p Prediction) Score() float64 {
	if p.Index < 0 || p.Index >= len(p.Probabilities) {
		return 0
	}
	return p.Probabilities[p.Index]
}

// ModelInfo describes the model a CareerPredictor is serving.
type ModelInfo struct {
	Path          string    `json:"path"`
	Fallback      bool      `json:"fallback"`
	Warning       string    `json:"warning,omitempty"`
	SchemaVersion int       `json:"schema_version"`
	TrainedAt     time.Time `json:"trained_at,omitempty"`
	LoadedAt      time.Time `json:"loaded_at"`
	Trees         int       `json:"trees"`
	OOBScore      float64   `json:"oob_score"`
	Features      []string  `json:"features"`
	Careers       []string  `json:"careers"`

	TopFeatures []FeatureStats `json:"top_features,omitempty"`
}

// infoTopFeatures is the number of ranked features reported by Info.
const infoTopFeatures = 10

// CareerPredictor serves predictions from a model artifact. If the artifact
// is missing or unreadable it degrades to the FallbackPredictor and reports
// a warning instead of failing.
type CareerPredictor struct {
	mu       sync.RWMutex
	path     string
	model    *artifact.Envelope
	fallback *FallbackPredictor
	warning  string
	loadedAt time.Time
	metrics  MetricsInterface
}

// NewCareerPredictor loads the artifact at path. metrics may be nil.
func NewCareerPredictor(path string, metrics MetricsInterface) *CareerPredictor {
	p := &CareerPredictor{
		path:     path,
		fallback: NewFallbackPredictor(),
		metrics:  metrics,
	}
	if err := p.Reload(); err != nil {
		p.warning = degradedWarning(err)
		log.Warn().Err(err).Str("model_path", path).Msg("Career model unavailable, using untrained fallback")
	}
	return p
}

func degradedWarning(err error) string {
	if errors.Is(err, artifact.ErrNotFound) {
		return "No trained model found; predictions come from an untrained default and may be inaccurate. Run the trainer first."
	}
	return fmt.Sprintf("Trained model could not be loaded (%v); predictions come from an untrained default and may be inaccurate.", err)
}

// Reload reads the artifact again. On failure the current model is kept.
func (p *CareerPredictor) Reload() error {
	p.mu.RLock()
	path := p.path
	p.mu.RUnlock()
	return p.ReloadFrom(path)
}

// ReloadFrom loads the artifact at path and serves it from then on. On
// failure the current model and path are kept.
func (p *CareerPredictor) ReloadFrom(path string) error {
	env, err := artifact.Load(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.path = path
	p.model = env
	p.warning = ""
	p.loadedAt = time.Now()
	p.mu.Unlock()

	log.Info().
		Str("model_path", path).
		Int("trees", len(env.Forest.Trees)).
		Time("trained_at", env.TrainedAt).
		Msg("Career model loaded")
	return nil
}

// Available reports whether a trained model is loaded.
func (p *CareerPredictor) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model != nil
}

// Warning returns the user-visible degradation message, or "" when a
// trained model is loaded.
func (p *CareerPredictor) Warning() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.warning
}

// Info describes the served model.
func (p *CareerPredictor) Info() ModelInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info := ModelInfo{
		Path:          p.path,
		Fallback:      p.model == nil,
		Warning:       p.warning,
		SchemaVersion: schema.Version,
		LoadedAt:      p.loadedAt,
		Features:      schema.FeatureNames(),
		Careers:       append([]string(nil), schema.Careers...),
	}
	if p.model != nil {
		info.TrainedAt = p.model.TrainedAt
		info.Trees = len(p.model.Forest.Trees)
		info.OOBScore = p.model.Forest.OOBScore()
		if fi, err := NewFeatureImportance(p.model.Forest.FeatureImportances()); err == nil {
			info.TopFeatures = fi.GetTopFeatures(infoTopFeatures)
		}
	}
	return info
}

// Predict returns the index of the most likely career for v.
func (p *CareerPredictor) Predict(v []float64) (int, error) {
	pred, err := p.PredictVector(v)
	if err != nil {
		return 0, err
	}
	return pred.Index, nil
}

// PredictProba returns the career distribution for v.
func (p *CareerPredictor) PredictProba(v []float64) ([]float64, error) {
	pred, err := p.PredictVector(v)
	if err != nil {
		return nil, err
	}
	return pred.Probabilities, nil
}

// PredictCareer builds a vector from named features and predicts it.
func (p *CareerPredictor) PredictCareer(features map[string]float64) (Prediction, error) {
	v, err := schema.VectorFromMap(features)
	if err != nil {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		return Prediction{}, err
	}
	return p.PredictVector(v)
}

// PredictVector predicts a vector already in schema order.
func (p *CareerPredictor) PredictVector(v []float64) (Prediction, error) {
	start := time.Now()
	if p.metrics != nil {
		defer func() {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}()
	}

	if err := schema.Validate(v); err != nil {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		return Prediction{}, err
	}

	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()

	var (
		proba []float64
		err   error
	)
	if model != nil {
		proba, err = model.Forest.PredictProba(v)
	} else {
		proba, err = p.fallback.PredictProba(v)
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}

	idx := argmax(proba)
	career, err := schema.CareerName(idx)
	if err != nil {
		return Prediction{}, err
	}
	pred := Prediction{
		Index:         idx,
		Career:        career,
		Probabilities: proba,
		Fallback:      model == nil,
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLPredictionScoresObserve(pred.Score())
		p.metrics.CareerPredictionInc(career)
		if model == nil {
			p.metrics.MLFallbackUseInc()
		} else {
			p.metrics.MLModelAgeSet(time.Since(model.TrainedAt).Seconds())
		}
	}
	return pred, nil
}
