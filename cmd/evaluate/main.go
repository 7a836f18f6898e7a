package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"career-pulse/internal/cfg"
	"career-pulse/internal/evaluate"
	"career-pulse/internal/ml"
	"career-pulse/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line arguments
	var (
		modelPath  = flag.String("model", "", "Model artifact (overrides ARTIFACT_PATH)")
		dataPath   = flag.String("data", "", "Row store directory or exported CSV file (overrides DATA_PATH)")
		dataFormat = flag.String("format", "auto", "Data format: auto, csv, boltdb, generate")
		seed       = flag.Int64("seed", 1, "Seed for -format generate; pick one other than the training seed")
		samples    = flag.Int("samples", 0, "Rows per career for -format generate (default SAMPLES_PER_CAREER)")
		outputPath = flag.String("output", "", "Output directory for reports")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *modelPath != "" {
		config.ArtifactPath = *modelPath
	}
	if *dataPath == "" {
		*dataPath = config.DataPath
	}
	if *samples <= 0 {
		*samples = config.SamplesPerCareer
	}

	loader := evaluate.NewDataLoader()
	switch *dataFormat {
	case "csv":
		err = loader.LoadFromCSV(*dataPath)
	case "boltdb":
		err = loadFromStore(loader, *dataPath)
	case "generate":
		loader.Generate(*seed, *samples)
	case "auto":
		err = autoLoadData(loader, *dataPath, *seed, *samples)
	default:
		log.Fatal().Str("format", *dataFormat).Msg("Unknown data format")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load data")
	}

	predictor := ml.NewCareerPredictor(config.ArtifactPath, nil)
	if !predictor.Available() {
		log.Warn().Msg("Evaluating the untrained fallback model")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := evaluate.NewEngine(predictor, loader)
	if err := engine.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	reporter := evaluate.NewReporter(engine.GetResults(), *outputPath)
	if *outputPath != "" {
		if err := reporter.GenerateReport(); err != nil {
			log.Error().Err(err).Msg("Failed to generate reports")
		}
	}
	reporter.PrintSummary(os.Stdout)
}

func loadFromStore(loader *evaluate.DataLoader, path string) error {
	store, err := storage.New(path)
	if err != nil {
		return fmt.Errorf("failed to open BoltDB: %w", err)
	}
	defer store.Close()
	return loader.LoadFromStore(store)
}

// autoLoadData picks the source from the path: a directory is a row store,
// a .csv file an export, and no path at all a freshly generated dataset.
func autoLoadData(loader *evaluate.DataLoader, path string, seed int64, samples int) error {
	if path == "" {
		loader.Generate(seed, samples)
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	switch {
	case info.IsDir():
		return loadFromStore(loader, path)
	case strings.HasSuffix(path, ".csv"):
		return loader.LoadFromCSV(path)
	default:
		return fmt.Errorf("cannot determine data format for: %s", path)
	}
}
