package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"career-pulse/internal/cfg"
	"career-pulse/internal/client"
	"career-pulse/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		logLevel  = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
		modelPath = flag.String("model", "", "Model artifact (overrides ARTIFACT_PATH)")
		server    = flag.Bool("server", false, "Ask the model server at SERVER_URL instead of loading the model")
		features  = flag.String("features", "", `Feature values as a JSON object, e.g. '{"Age":25,"Maths - Algebra":4}'`)
		input     = flag.String("input", "", "Read the feature JSON object from this file ('-' for stdin)")
		info      = flag.Bool("info", false, "Describe the model instead of predicting")
	)
	flag.Parse()

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	path := c.ArtifactPath
	if *modelPath != "" {
		path = *modelPath
	}

	if *info {
		printJSON(describe(c, path, *server))
		return
	}

	values, err := readFeatures(*features, *input)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid input")
	}

	var out any
	if *server {
		ctx, cancel := context.WithTimeout(context.Background(), c.ClientTimeout)
		defer cancel()
		resp, err := client.New(c.ServerURL, c.ClientTimeout).Predict(ctx, values)
		if err != nil {
			log.Fatal().Err(err).Str("server", c.ServerURL).Msg("prediction failed")
		}
		out = resp
	} else {
		predictor := ml.NewCareerPredictor(path, nil)
		start := time.Now()
		pred, err := predictor.PredictCareer(values)
		if err != nil {
			log.Fatal().Err(err).Msg("prediction failed")
		}
		if w := predictor.Warning(); w != "" {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
		out = ml.PredictionResponse{
			Prediction: pred,
			Warning:    predictor.Warning(),
			Latency:    float64(time.Since(start).Microseconds()) / 1000,
			Timestamp:  time.Now(),
		}
	}

	printJSON(out)
}

// describe reports the model either from the server or from the local file.
func describe(c cfg.Settings, path string, server bool) any {
	if !server {
		return ml.NewCareerPredictor(path, nil).Info()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.ClientTimeout)
	defer cancel()
	api := client.New(c.ServerURL, c.ClientTimeout)
	health, err := api.Health(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("server", c.ServerURL).Msg("health check failed")
	}
	if health.Warning != "" {
		fmt.Fprintln(os.Stderr, "warning:", health.Warning)
	}
	info, err := api.Info(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("server", c.ServerURL).Msg("model info failed")
	}
	return info
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("write result")
	}
}

func readFeatures(inline, file string) (map[string]float64, error) {
	var data []byte
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("use either -features or -input, not both")
	case inline != "":
		data = []byte(inline)
	case file == "-":
		var err error
		if data, err = io.ReadAll(os.Stdin); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	case file != "":
		var err error
		if data, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
	default:
		return nil, fmt.Errorf("no features given; pass -features or -input")
	}

	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse features: %w", err)
	}
	return values, nil
}
