// Package trainer runs the offline pipeline that produces the career model:
// generate (or reload) the synthetic rows, fit the forest, evaluate it, save
// the artifact and register the version.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"career-pulse/internal/artifact"
	"career-pulse/internal/cfg"
	"career-pulse/internal/dataset"
	"career-pulse/internal/forest"
	"career-pulse/internal/metrics"
	"career-pulse/internal/ml"
	"career-pulse/internal/schema"
	"career-pulse/internal/storage"

	"github.com/rs/zerolog/log"
)

// ErrEmptyStore is returned when retraining from a store that holds no rows.
var ErrEmptyStore = errors.New("trainer: row store is empty")

// reportTopFeatures is how many ranked features a Report carries.
const reportTopFeatures = 10

// Options control one training run. Empty paths disable their stage.
type Options struct {
	Seed             int64
	SamplesPerCareer int
	Params           forest.Params
	HoldoutFraction  float64

	ArtifactPath   string
	DataPath       string // bbolt row store
	FromStore      bool   // retrain on the stored rows instead of generating
	CSVPath        string
	ModelsDir      string // version registry
	ImportancePath string // feature importance JSON
	MetricsFile    string

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// OptionsFromSettings maps loaded settings onto run options.
func OptionsFromSettings(s cfg.Settings) Options {
	return Options{
		Seed:             s.Seed,
		SamplesPerCareer: s.SamplesPerCareer,
		Params:           s.Forest,
		HoldoutFraction:  s.HoldoutFraction,
		ArtifactPath:     s.ArtifactPath,
		DataPath:         s.DataPath,
		CSVPath:          s.CSVPath,
		ModelsDir:        s.ModelsDir,
		MetricsFile:      s.MetricsFile,
	}
}

// Report summarises a training run.
type Report struct {
	Rows            int               `json:"rows"`
	Features        int               `json:"features"`
	Classes         int               `json:"classes"`
	TrainAccuracy   float64           `json:"train_accuracy"`
	OOBAccuracy     float64           `json:"oob_accuracy"`
	HoldoutAccuracy float64           `json:"holdout_accuracy"`
	HoldoutRows     int               `json:"holdout_rows"`
	ArtifactPath    string            `json:"artifact_path"`
	Version         string            `json:"version,omitempty"`
	Duration        time.Duration     `json:"duration"`
	TopFeatures     []ml.FeatureStats `json:"top_features"`
	Model           *forest.Forest    `json:"-"`
	Dataset         *dataset.Dataset  `json:"-"`
}

// Run executes the pipeline. The returned error wraps the failing stage.
func Run(ctx context.Context, opts Options) (Report, error) {
	start := time.Now()
	if opts.ArtifactPath == "" {
		opts.ArtifactPath = artifact.DefaultPath
	}
	if opts.Params.Trees == 0 {
		opts.Params = forest.DefaultParams()
		opts.Params.Seed = opts.Seed
	}

	ds, err := loadRows(opts)
	if err != nil {
		return Report{}, err
	}
	if err := ds.Validate(); err != nil {
		return Report{}, fmt.Errorf("validate dataset: %w", err)
	}
	log.Info().Int("rows", ds.Len()).Int64("seed", opts.Seed).Bool("from_store", opts.FromStore).Msg("Dataset ready")

	if opts.DataPath != "" && !opts.FromStore {
		if err := persistRows(opts, ds); err != nil {
			return Report{}, err
		}
	}
	if opts.CSVPath != "" {
		if err := exportCSV(opts.CSVPath, ds); err != nil {
			return Report{}, err
		}
		log.Info().Str("file", opts.CSVPath).Msg("Dataset exported")
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	fitStart := time.Now()
	model, err := forest.Fit(ds.X, ds.Y, schema.NumCareers, opts.Params)
	if err != nil {
		return Report{}, fmt.Errorf("fit forest: %w", err)
	}
	fitSeconds := time.Since(fitStart).Seconds()
	log.Info().Int("trees", len(model.Trees)).Float64("seconds", fitSeconds).Msg("Forest fitted")

	report := Report{
		Rows:        ds.Len(),
		Features:    schema.NumFeatures,
		Classes:     schema.NumCareers,
		OOBAccuracy: model.OOBScore(),
		Model:       model,
		Dataset:     ds,
	}
	if report.TrainAccuracy, err = model.Score(ds.X, ds.Y); err != nil {
		return Report{}, fmt.Errorf("score training rows: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	// The served model sees every row. Holdout accuracy comes from a second
	// forest fitted on the training split only.
	var holdout *dataset.Dataset
	evalModel := model
	if opts.HoldoutFraction > 0 {
		var train *dataset.Dataset
		train, holdout = ds.Split(opts.HoldoutFraction, rand.New(rand.NewSource(opts.Seed)))
		if holdout.Len() > 0 {
			evalModel, err = forest.Fit(train.X, train.Y, schema.NumCareers, opts.Params)
			if err != nil {
				return Report{}, fmt.Errorf("fit evaluation forest: %w", err)
			}
			if report.HoldoutAccuracy, err = evalModel.Score(holdout.X, holdout.Y); err != nil {
				return Report{}, fmt.Errorf("score holdout rows: %w", err)
			}
			report.HoldoutRows = holdout.Len()
		}
	}
	log.Info().
		Float64("train_accuracy", report.TrainAccuracy).
		Float64("oob_accuracy", report.OOBAccuracy).
		Float64("holdout_accuracy", report.HoldoutAccuracy).
		Int("holdout_rows", report.HoldoutRows).
		Msg("Model evaluated")
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	env := artifact.New(model)
	if err := saveArtifact(opts.ArtifactPath, env); err != nil {
		return Report{}, err
	}
	report.ArtifactPath = opts.ArtifactPath
	log.Info().Str("path", opts.ArtifactPath).Msg("Model artifact saved")

	if opts.ModelsDir != "" {
		if report.Version, err = register(opts, env, report); err != nil {
			return Report{}, err
		}
	}

	fi, err := ml.NewFeatureImportance(model.FeatureImportances())
	if err != nil {
		return Report{}, fmt.Errorf("feature importance: %w", err)
	}
	if opts.ImportancePath != "" {
		x, y := ds.X, ds.Y
		if holdout != nil && holdout.Len() > 0 {
			x, y = holdout.X, holdout.Y
		}
		if err := fi.CalculatePermutationImportance(evalModel, x, y, rand.New(rand.NewSource(opts.Seed))); err != nil {
			return Report{}, fmt.Errorf("permutation importance: %w", err)
		}
		if err := fi.Save(opts.ImportancePath); err != nil {
			return Report{}, err
		}
		log.Info().Str("file", opts.ImportancePath).Msg("Feature importance saved")
	}
	report.TopFeatures = fi.GetTopFeatures(reportTopFeatures)

	if opts.Metrics != nil {
		opts.Metrics.ObserveTraining(report.Rows, fitSeconds, report.TrainAccuracy, report.OOBAccuracy, report.HoldoutAccuracy, len(model.Trees))
		if opts.MetricsFile != "" {
			if err := opts.Metrics.WriteToTextfile(opts.MetricsFile); err != nil {
				return Report{}, err
			}
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func loadRows(opts Options) (*dataset.Dataset, error) {
	if !opts.FromStore {
		return dataset.NewGenerator(opts.Seed, opts.SamplesPerCareer).Generate(), nil
	}
	if opts.DataPath == "" {
		return nil, fmt.Errorf("retrain from store: no data path configured")
	}

	store, err := storage.New(opts.DataPath)
	if err != nil {
		return nil, fmt.Errorf("open row store: %w", err)
	}
	defer store.Close()

	ds, err := store.LoadDataset()
	if err != nil {
		return nil, fmt.Errorf("load stored rows: %w", err)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyStore, store.Path())
	}
	return ds, nil
}

func persistRows(opts Options, ds *dataset.Dataset) error {
	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.New(opts.DataPath)
	if err != nil {
		return fmt.Errorf("open row store: %w", err)
	}
	defer store.Close()

	meta := storage.Meta{
		Seed:             opts.Seed,
		SamplesPerCareer: ds.Len() / schema.NumCareers,
		GeneratedAt:      time.Now().UTC(),
	}
	if err := store.ReplaceDataset(ds, meta); err != nil {
		return fmt.Errorf("store rows: %w", err)
	}
	log.Info().Str("path", store.Path()).Int("rows", ds.Len()).Msg("Rows stored")
	return nil
}

func exportCSV(path string, ds *dataset.Dataset) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := ds.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("export csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	return nil
}

func saveArtifact(path string, env *artifact.Envelope) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := artifact.Save(path, env); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// register saves a versioned copy of the artifact and makes it active.
func register(opts Options, env *artifact.Envelope, report Report) (string, error) {
	mm, err := ml.NewModelManager(opts.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("open model registry: %w", err)
	}

	version, path := mm.NextPath(time.Now())
	if err := artifact.Save(path, env); err != nil {
		return "", fmt.Errorf("save versioned artifact: %w", err)
	}
	v, err := mm.AddVersion(version, path, ml.ModelMetrics{
		TrainAccuracy:   report.TrainAccuracy,
		OOBAccuracy:     report.OOBAccuracy,
		HoldoutAccuracy: report.HoldoutAccuracy,
		TrainingSamples: report.Rows,
		HoldoutSamples:  report.HoldoutRows,
		Trees:           len(env.Forest.Trees),
		Seed:            opts.Seed,
	})
	if err != nil {
		return "", fmt.Errorf("register model version: %w", err)
	}
	if err := mm.ActivateVersion(v.Version); err != nil {
		return "", fmt.Errorf("activate model version: %w", err)
	}

	log.Info().Str("version", v.Version).Str("path", path).Msg("Model version registered")
	return v.Version, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
