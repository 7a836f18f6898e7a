package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"career-pulse/internal/cfg"
	"career-pulse/internal/dataset"
	"career-pulse/internal/schema"
	"career-pulse/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath = flag.String("data", "", "Row store directory (overrides DATA_PATH)")
		seed     = flag.Int64("seed", 0, "Generator seed (default SEED)")
		samples  = flag.Int("samples", 0, "Rows per career (default SAMPLES_PER_CAREER)")
		careers  = flag.String("careers", "", "Comma-separated careers to generate; appends instead of replacing")
		logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *dataPath == "" {
		*dataPath = c.DataPath
	}
	if *dataPath == "" {
		log.Fatal().Msg("no row store given; pass -data or set DATA_PATH")
	}
	if !flagSet(flag.CommandLine, "seed") {
		*seed = c.Seed
	}
	if *samples <= 0 {
		*samples = c.SamplesPerCareer
	}

	labels, err := parseCareers(*careers)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -careers")
	}

	if err := os.MkdirAll(*dataPath, 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}
	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage")
	}
	defer store.Close()

	gen := dataset.NewGenerator(*seed, *samples)
	if len(labels) == 0 {
		ds := gen.Generate()
		meta := storage.Meta{Seed: *seed, SamplesPerCareer: gen.Samples(), GeneratedAt: time.Now().UTC()}
		if err := store.ReplaceDataset(ds, meta); err != nil {
			log.Fatal().Err(err).Msg("Failed to store rows")
		}
		fmt.Printf("Generated %d rows for %d careers\n", ds.Len(), schema.NumCareers)
		return
	}

	var rows []dataset.Row
	for _, label := range labels {
		for i := 0; i < gen.Samples(); i++ {
			rows = append(rows, gen.Row(label))
		}
	}
	if err := store.StoreRows(rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to store rows")
	}
	total, err := store.CountRows()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count rows")
	}
	fmt.Printf("Appended %d rows; the store now holds %d\n", len(rows), total)
}

// parseCareers parses comma-separated career names
func parseCareers(list string) ([]int, error) {
	var labels []int
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		label, err := schema.CareerIndex(name)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// flagSet reports whether name was passed on the command line, so an
// explicit zero is told apart from the default.
func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
