package common

import "time"

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvArtifactPath     = "ARTIFACT_PATH"
	EnvSeed             = "SEED"
	EnvSamplesPerCareer = "SAMPLES_PER_CAREER"
	EnvHoldoutFraction  = "HOLDOUT_FRACTION"
	EnvTrees            = "TREES"
	EnvMaxDepth         = "MAX_DEPTH"
	EnvMinSamplesSplit  = "MIN_SAMPLES_SPLIT"
	EnvMaxFeatures      = "MAX_FEATURES"
	EnvBootstrap        = "BOOTSTRAP"
	EnvDataPath         = "DATA_PATH"
	EnvCSVPath          = "CSV_PATH"
	EnvModelsDir        = "MODELS_DIR"
	EnvMetricsFile      = "METRICS_FILE"
	EnvServerPort       = "SERVER_PORT"
	EnvServerURL        = "SERVER_URL"
	EnvClientTimeout    = "CLIENT_TIMEOUT"
)

// Configuration defaults
const (
	DefaultSeed            = 42
	DefaultHoldoutFraction = 0.2
	DefaultServerPort      = 8080
	DefaultServerURL       = "http://localhost:8080"
	DefaultClientTimeout   = 5 * time.Second
)

// Validation constants
const (
	MinSamplesPerCareer = 1
	MaxSamplesPerCareer = 100000
	MaxTrees            = 10000
	MinServerPort       = 1024
	MaxServerPort       = 65535
	MinClientTimeout    = 100 * time.Millisecond
	MaxClientTimeout    = time.Minute
)
