// Package cfg loads training and serving settings from a YAML file or the
// environment. Environment variables always override file values, and an
// optional .env file is read first so local overrides need no exports.
package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"career-pulse/internal/artifact"
	"career-pulse/internal/common"
	"career-pulse/internal/dataset"
	"career-pulse/internal/forest"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DotEnvFile is read before the environment when present.
const DotEnvFile = ".env"

type Settings struct {
	ArtifactPath     string
	Seed             int64
	SamplesPerCareer int
	HoldoutFraction  float64
	Forest           forest.Params
	DataPath         string // bbolt row store directory, optional
	CSVPath          string // dataset export, optional
	ModelsDir        string // version registry directory, optional
	MetricsFile      string // Prometheus textfile written after training, optional
	ServerPort       int
	ServerURL        string
	ClientTimeout    time.Duration
}

type ConfigFile struct {
	Model struct {
		ArtifactPath    string `yaml:"artifactPath"`
		Trees           int    `yaml:"trees"`
		MaxDepth        int    `yaml:"maxDepth"`
		MinSamplesSplit int    `yaml:"minSamplesSplit"`
		MaxFeatures     int    `yaml:"maxFeatures"`
		Bootstrap       *bool  `yaml:"bootstrap"`
	} `yaml:"model"`

	Dataset struct {
		Seed             *int64   `yaml:"seed"`
		SamplesPerCareer int      `yaml:"samplesPerCareer"`
		HoldoutFraction  *float64 `yaml:"holdoutFraction"`
		CSVPath          string   `yaml:"csvPath"`
	} `yaml:"dataset"`

	System struct {
		DataPath      string `yaml:"dataPath"`
		ModelsDir     string `yaml:"modelsDir"`
		MetricsFile   string `yaml:"metricsFile"`
		ServerPort    int    `yaml:"serverPort"`
		ServerURL     string `yaml:"serverURL"`
		ClientTimeout string `yaml:"clientTimeout"`
	} `yaml:"system"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		ArtifactPath:     artifact.DefaultPath,
		Seed:             common.DefaultSeed,
		SamplesPerCareer: dataset.SamplesPerCareer,
		HoldoutFraction:  common.DefaultHoldoutFraction,
		Forest:           forest.DefaultParams(),
		ServerPort:       common.DefaultServerPort,
		ServerURL:        common.DefaultServerURL,
		ClientTimeout:    common.DefaultClientTimeout,
	}
}

func Load() (Settings, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// loadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Default()
	if config.Model.ArtifactPath != "" {
		settings.ArtifactPath = config.Model.ArtifactPath
	}
	if config.Model.Trees != 0 {
		settings.Forest.Trees = config.Model.Trees
	}
	if config.Model.MaxDepth != 0 {
		settings.Forest.MaxDepth = config.Model.MaxDepth
	}
	if config.Model.MinSamplesSplit != 0 {
		settings.Forest.MinSamplesSplit = config.Model.MinSamplesSplit
	}
	if config.Model.MaxFeatures != 0 {
		settings.Forest.MaxFeatures = config.Model.MaxFeatures
	}
	if config.Model.Bootstrap != nil {
		settings.Forest.Bootstrap = *config.Model.Bootstrap
	}
	if config.Dataset.Seed != nil {
		settings.Seed = *config.Dataset.Seed
	}
	if config.Dataset.SamplesPerCareer != 0 {
		settings.SamplesPerCareer = config.Dataset.SamplesPerCareer
	}
	if config.Dataset.HoldoutFraction != nil {
		settings.HoldoutFraction = *config.Dataset.HoldoutFraction
	}
	settings.CSVPath = config.Dataset.CSVPath
	settings.DataPath = config.System.DataPath
	settings.ModelsDir = config.System.ModelsDir
	settings.MetricsFile = config.System.MetricsFile
	if config.System.ServerPort != 0 {
		settings.ServerPort = config.System.ServerPort
	}
	if config.System.ServerURL != "" {
		settings.ServerURL = config.System.ServerURL
	}
	if config.System.ClientTimeout != "" {
		d, err := time.ParseDuration(config.System.ClientTimeout)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid clientTimeout %q: %w", config.System.ClientTimeout, err)
		}
		settings.ClientTimeout = d
	}

	// Override with environment variables if they exist
	return applyEnv(settings)
}

func loadFromEnv() (Settings, error) {
	return applyEnv(Default())
}

func applyEnv(s Settings) (Settings, error) {
	var env envReader
	s.ArtifactPath = env.getString(common.EnvArtifactPath, s.ArtifactPath)
	s.Seed = env.getInt64(common.EnvSeed, s.Seed)
	s.SamplesPerCareer = env.getInt(common.EnvSamplesPerCareer, s.SamplesPerCareer)
	s.HoldoutFraction = env.getFloat(common.EnvHoldoutFraction, s.HoldoutFraction)
	s.Forest.Trees = env.getInt(common.EnvTrees, s.Forest.Trees)
	s.Forest.MaxDepth = env.getInt(common.EnvMaxDepth, s.Forest.MaxDepth)
	s.Forest.MinSamplesSplit = env.getInt(common.EnvMinSamplesSplit, s.Forest.MinSamplesSplit)
	s.Forest.MaxFeatures = env.getInt(common.EnvMaxFeatures, s.Forest.MaxFeatures)
	s.Forest.Bootstrap = env.getBool(common.EnvBootstrap, s.Forest.Bootstrap)
	s.DataPath = env.getString(common.EnvDataPath, s.DataPath)
	s.CSVPath = env.getString(common.EnvCSVPath, s.CSVPath)
	s.ModelsDir = env.getString(common.EnvModelsDir, s.ModelsDir)
	s.MetricsFile = env.getString(common.EnvMetricsFile, s.MetricsFile)
	s.ServerPort = env.getInt(common.EnvServerPort, s.ServerPort)
	s.ServerURL = env.getString(common.EnvServerURL, s.ServerURL)
	s.ClientTimeout = env.getDuration(common.EnvClientTimeout, s.ClientTimeout)
	if err := env.err(); err != nil {
		return Settings{}, err
	}

	// The forest seed follows the dataset seed.
	s.Forest.Seed = s.Seed

	// Validate configuration
	if err := validateSettings(&s); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return s, nil
}

// envReader reads typed environment overrides and collects parse errors.
type envReader struct {
	errs []error
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

func (r *envReader) fail(key, v, kind string) {
	r.errs = append(r.errs, fmt.Errorf("environment variable %s: invalid %s %q", key, kind, v))
}

func (r *envReader) getString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func (r *envReader) getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, "integer")
			return defaultValue
		}
		return i
	}
	return defaultValue
}

func (r *envReader) getInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.fail(key, v, "integer")
			return defaultValue
		}
		return i
	}
	return defaultValue
}

func (r *envReader) getFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, "number")
			return defaultValue
		}
		return f
	}
	return defaultValue
}

func (r *envReader) getBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, "boolean")
			return defaultValue
		}
		return b
	}
	return defaultValue
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, "duration")
			return defaultValue
		}
		return d
	}
	return defaultValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ArtifactPath == "" {
		return fmt.Errorf("artifact path cannot be empty")
	}

	// Dataset
	if settings.SamplesPerCareer < common.MinSamplesPerCareer || settings.SamplesPerCareer > common.MaxSamplesPerCareer {
		return fmt.Errorf("samples per career must be between %d and %d, got %d",
			common.MinSamplesPerCareer, common.MaxSamplesPerCareer, settings.SamplesPerCareer)
	}
	if settings.HoldoutFraction < 0 || settings.HoldoutFraction >= 1 {
		return fmt.Errorf("holdout fraction must be in [0, 1), got %f", settings.HoldoutFraction)
	}

	// Forest
	p := settings.Forest
	if p.Trees < 1 || p.Trees > common.MaxTrees {
		return fmt.Errorf("trees must be between 1 and %d, got %d", common.MaxTrees, p.Trees)
	}
	if p.MaxDepth < 0 {
		return fmt.Errorf("max depth cannot be negative, got %d", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("min samples split must be at least 2, got %d", p.MinSamplesSplit)
	}
	if p.MaxFeatures < 0 {
		return fmt.Errorf("max features cannot be negative, got %d", p.MaxFeatures)
	}

	// Serving
	if settings.ServerPort < common.MinServerPort || settings.ServerPort > common.MaxServerPort {
		return fmt.Errorf("server port must be between %d and %d, got %d",
			common.MinServerPort, common.MaxServerPort, settings.ServerPort)
	}
	if settings.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	if settings.ClientTimeout < common.MinClientTimeout || settings.ClientTimeout > common.MaxClientTimeout {
		return fmt.Errorf("client timeout must be between %v and %v, got %v",
			common.MinClientTimeout, common.MaxClientTimeout, settings.ClientTimeout)
	}

	return nil
}
