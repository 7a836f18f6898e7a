// Package metrics provides Prometheus metrics for the career model pipeline.
// It covers dataset generation, training runs and prediction traffic, and is
// exposed by the model server's /metrics endpoint or written to a textfile
// after a training run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Training metrics
	RowsGenerated    prometheus.Counter   // Total number of synthetic rows generated
	TrainingRuns     prometheus.Counter   // Total number of completed training runs
	TrainingDuration prometheus.Histogram // Duration of forest fitting
	TrainAccuracy    prometheus.Gauge     // Accuracy on the training rows
	OOBAccuracy      prometheus.Gauge     // Out-of-bag accuracy
	HoldoutAccuracy  prometheus.Gauge     // Accuracy on the held-out rows
	ModelTrees       prometheus.Gauge     // Number of trees in the latest model

	// Prediction metrics
	MLPredictions      prometheus.Counter     // Total number of predictions made
	MLFailures         prometheus.Counter     // Total number of rejected or failed predictions
	MLFallbackUse      prometheus.Counter     // Total number of predictions served by the fallback
	MLModelAge         prometheus.Gauge       // Age of the loaded model in seconds
	MLLatency          prometheus.Histogram   // Prediction latency in seconds
	MLPredictionScores prometheus.Histogram   // Distribution of winning class probabilities
	CareerPredictions  *prometheus.CounterVec // Predictions by career

	registerer prometheus.Registerer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RowsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "career_rows_generated_total",
			Help: "Total number of synthetic training rows generated",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "career_training_runs_total",
			Help: "Total number of completed training runs",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "career_training_duration_seconds",
			Help:    "Duration of random forest fitting in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		TrainAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "career_train_accuracy",
			Help: "Accuracy of the latest model on its training rows",
		}),
		OOBAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "career_oob_accuracy",
			Help: "Out-of-bag accuracy of the latest model",
		}),
		HoldoutAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "career_holdout_accuracy",
			Help: "Accuracy of the latest model on held-out rows",
		}),
		ModelTrees: factory.NewGauge(prometheus.GaugeOpts{
			Name: "career_model_trees",
			Help: "Number of trees in the latest model",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of career predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of rejected or failed predictions",
		}),
		MLFallbackUse: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_fallback_use_total",
			Help: "Total number of predictions served by the fallback model",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of winning class probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		CareerPredictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "career_predictions_total",
			Help: "Total number of predictions by career",
		}, []string{"career"}),
		registerer: registerer,
	}
}

// ObserveTraining records the outcome of a training run.
func (m *Metrics) ObserveTraining(rows int, seconds, trainAcc, oobAcc, holdoutAcc float64, trees int) {
	m.RowsGenerated.Add(float64(rows))
	m.TrainingRuns.Inc()
	m.TrainingDuration.Observe(seconds)
	m.TrainAccuracy.Set(trainAcc)
	m.OOBAccuracy.Set(oobAcc)
	m.HoldoutAccuracy.Set(holdoutAcc)
	m.ModelTrees.Set(float64(trees))
}

// GetFailureRate returns failed predictions over all prediction attempts, or
// 0 if nothing has been recorded.
func (m *Metrics) GetFailureRate() float64 {
	ok := counterValue(m.MLPredictions)
	failed := counterValue(m.MLFailures)
	if ok+failed == 0 {
		return 0
	}
	return failed / (ok + failed)
}

// WriteToTextfile writes every metric in the registry to path in the
// node_exporter textfile format. The registry must also be a Gatherer.
func (m *Metrics) WriteToTextfile(path string) error {
	g, ok := m.registerer.(prometheus.Gatherer)
	if !ok {
		return fmt.Errorf("registerer %T cannot be gathered", m.registerer)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func counterValue(c prometheus.Counter) float64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return pb.GetCounter().GetValue()
}
