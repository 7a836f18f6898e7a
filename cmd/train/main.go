package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"career-pulse/internal/cfg"
	"career-pulse/internal/metrics"
	"career-pulse/internal/trainer"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		fromStore  = flag.Bool("from-store", false, "Retrain on the rows kept under DATA_PATH instead of generating")
		importance = flag.String("importance", "", "Write feature importance JSON to this file")
	)
	flag.Parse()

	setupLogging(*logLevel)

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := trainer.OptionsFromSettings(c)
	opts.FromStore = *fromStore
	opts.ImportancePath = *importance
	opts.Metrics = metrics.New()

	report, err := trainer.Run(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	log.Info().
		Int("rows", report.Rows).
		Float64("train_accuracy", report.TrainAccuracy).
		Float64("oob_accuracy", report.OOBAccuracy).
		Float64("holdout_accuracy", report.HoldoutAccuracy).
		Str("version", report.Version).
		Dur("duration", report.Duration).
		Msg("training complete")
	for i, f := range report.TopFeatures {
		log.Debug().Int("rank", i+1).Str("feature", f.Name).Float64("importance", f.ImpurityScore).Msg("top feature")
	}

	fmt.Printf("Trained and saved a new career model with %d features!\n", report.Features)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
