package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"career-pulse/internal/cfg"
	"career-pulse/internal/ml"
	"career-pulse/internal/schema"
	"career-pulse/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath  = flag.String("data", "", "Row store directory (overrides DATA_PATH)")
		export    = flag.String("export", "", "Export the stored rows as CSV to this file")
		show      = flag.Int("rows", 0, "Print this many stored rows")
		clearRows = flag.Bool("clear", false, "Delete every stored row")
		modelsDir = flag.String("models", "", "Model registry directory (overrides MODELS_DIR)")
		versions  = flag.Bool("versions", false, "List registered model versions instead of rows")
		rollback  = flag.Bool("rollback", false, "Activate the version registered before the active one")
		logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *versions || *rollback {
		if *modelsDir == "" {
			*modelsDir = loadSettings().ModelsDir
		}
		if *modelsDir == "" {
			log.Fatal().Msg("no model registry given; pass -models or set MODELS_DIR")
		}
		if err := inspectRegistry(os.Stdout, *modelsDir, *rollback); err != nil {
			log.Fatal().Err(err).Msg("Model registry inspection failed")
		}
		return
	}

	if *dataPath == "" {
		*dataPath = loadSettings().DataPath
	}
	if *dataPath == "" {
		log.Fatal().Msg("no row store given; pass -data or set DATA_PATH")
	}

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	if *clearRows {
		if err := store.Clear(); err != nil {
			log.Fatal().Err(err).Msg("Failed to clear storage")
		}
		log.Info().Str("path", store.Path()).Msg("Row store cleared")
		return
	}

	fmt.Printf("Inspecting rows in: %s\n", store.Path())
	if meta, ok, err := store.LoadMeta(); err != nil {
		log.Fatal().Err(err).Msg("Failed to read generation metadata")
	} else if ok {
		fmt.Printf("Generated: %s (seed %d, %d per career)\n",
			meta.GeneratedAt.Format("2006-01-02 15:04:05"), meta.Seed, meta.SamplesPerCareer)
	}

	ds, err := store.LoadDataset()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load rows")
	}
	fmt.Printf("Rows: %d\n\n", ds.Len())

	for label, n := range ds.CountByLabel() {
		fmt.Printf("%-36s %d\n", schema.Careers[label], n)
	}

	for i := 0; i < *show && i < ds.Len(); i++ {
		fmt.Printf("\n#%d %s\n", i, schema.Careers[ds.Y[i]])
		for j, f := range schema.Features {
			if v := ds.X[i][j]; v != 0 {
				fmt.Printf("  %-40s %g\n", f.Name, v)
			}
		}
	}

	if *export != "" {
		f, err := os.Create(*export)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create export file")
		}
		if err := ds.WriteCSV(f); err != nil {
			f.Close()
			log.Fatal().Err(err).Msg("Failed to export rows")
		}
		if err := f.Close(); err != nil {
			log.Fatal().Err(err).Msg("Failed to close export file")
		}
		log.Info().Str("file", *export).Int("rows", ds.Len()).Msg("Rows exported")
	}
}

func loadSettings() cfg.Settings {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	return c
}

// inspectRegistry prints the registered versions to w, rolling back first
// when asked. A running server picks up the change on SIGHUP.
func inspectRegistry(w io.Writer, dir string, rollback bool) error {
	mm, err := ml.NewModelManager(dir)
	if err != nil {
		return err
	}

	if rollback {
		prev, err := mm.Rollback()
		if err != nil {
			return err
		}
		log.Info().Str("version", prev.Version).Str("path", prev.Path).Msg("Rolled back model version")
	}

	list := mm.ListVersions()
	fmt.Fprintf(w, "Model versions in: %s (%d)\n", mm.Dir(), len(list))
	for _, v := range list {
		marker := " "
		if v.IsActive {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-20s %s  trees=%d holdout=%.2f%% oob=%.2f%%  %s\n",
			marker, v.Version, v.CreatedAt.Format("2006-01-02 15:04:05"),
			v.Metrics.Trees, v.Metrics.HoldoutAccuracy*100, v.Metrics.OOBAccuracy*100, v.Path)
	}
	return nil
}
