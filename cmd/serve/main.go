package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"career-pulse/internal/cfg"
	"career-pulse/internal/metrics"
	"career-pulse/internal/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	versions := initializeRegistry(c)
	modelPath := c.ArtifactPath
	if versions != nil {
		if active := versions.GetCurrentVersion(); active != nil {
			modelPath = active.Path
			log.Info().Str("version", active.Version).Msg("serving active registry version")
		}
	}

	m := metrics.New()
	predictor := ml.NewCareerPredictor(modelPath, metrics.NewWrapper(m))
	server := ml.NewModelServer(predictor, versions, prometheus.DefaultGatherer, c.ServerPort)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	waitForShutdown(server, errCh)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("model server stopped")
}

// initializeRegistry opens the version registry if MODELS_DIR is configured
func initializeRegistry(c cfg.Settings) *ml.ModelManager {
	if c.ModelsDir == "" {
		return nil
	}
	mm, err := ml.NewModelManager(c.ModelsDir)
	if err != nil {
		log.Warn().Err(err).Msg("model registry unavailable, serving ARTIFACT_PATH")
		return nil
	}
	return mm
}

// waitForShutdown blocks until a termination signal or a server error.
// SIGHUP reloads the registry's active version in place.
func waitForShutdown(server *ml.ModelServer, errCh <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				path, err := server.ReloadModel()
				if err != nil {
					log.Warn().Err(err).Str("model_path", path).Msg("model reload failed, keeping current model")
				} else {
					log.Info().Str("model_path", path).Msg("model reloaded")
				}
				continue
			}
			log.Info().Msg("shutdown signal received")
			return
		case err := <-errCh:
			log.Error().Err(err).Msg("model server failed")
			return
		}
	}
}
