package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// VersionsFile is the registry file name inside the models directory.
const VersionsFile = "model_versions.json"

// ModelVersion represents a versioned career model artifact
type ModelVersion struct {
	Version   string       `json:"version"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics contains evaluation results recorded at training time
type ModelMetrics struct {
	TrainAccuracy   float64 `json:"train_accuracy"`
	OOBAccuracy     float64 `json:"oob_accuracy"`
	HoldoutAccuracy float64 `json:"holdout_accuracy"`
	TrainingSamples int     `json:"training_samples"`
	HoldoutSamples  int     `json:"holdout_samples"`
	Trees           int     `json:"trees"`
	Seed            int64   `json:"seed"`
}

// ModelManager handles model versioning and rollback. Versions are kept
// newest first.
type ModelManager struct {
	mu           sync.RWMutex
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
}

// NewModelManager creates a new model manager, creating modelsDir if needed.
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, VersionsFile),
		versions:     make([]ModelVersion, 0),
	}

	// Load existing versions if available
	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Str("file", mm.versionsFile).Msg("Failed to load model versions, starting fresh")
		mm.versions = make([]ModelVersion, 0)
	}

	return mm, nil
}

// Dir returns the models directory.
func (mm *ModelManager) Dir() string {
	return mm.modelsDir
}

// NextPath returns where the artifact for a new version should be written.
func (mm *ModelManager) NextPath(now time.Time) (version, path string) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	version = mm.uniqueVersion(now)
	return version, filepath.Join(mm.modelsDir, "career_model-"+version+".bin")
}

func (mm *ModelManager) uniqueVersion(now time.Time) string {
	base := now.Format("20060102-150405")
	version := base
	for n := 2; mm.find(version) >= 0; n++ {
		version = fmt.Sprintf("%s-%d", base, n)
	}
	return version
}

func (mm *ModelManager) find(version string) int {
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			return i
		}
	}
	return -1
}

// AddVersion registers a new, inactive model version. An empty version
// name is derived from the current time.
func (mm *ModelManager) AddVersion(version, modelPath string, metrics ModelMetrics) (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	if version == "" {
		version = mm.uniqueVersion(now)
	}
	if mm.find(version) >= 0 {
		return ModelVersion{}, fmt.Errorf("version %s already registered", version)
	}

	v := ModelVersion{
		Version:   version,
		Path:      modelPath,
		CreatedAt: now,
		Metrics:   metrics,
	}
	mm.versions = append([]ModelVersion{v}, mm.versions...)

	return v, mm.saveVersions()
}

// ActivateVersion activates a specific model version
func (mm *ModelManager) ActivateVersion(version string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.activate(version)
}

func (mm *ModelManager) activate(version string) error {
	if mm.find(version) < 0 {
		return fmt.Errorf("version %s not found", version)
	}
	for i := range mm.versions {
		mm.versions[i].IsActive = mm.versions[i].Version == version
	}
	return mm.saveVersions()
}

// Rollback activates the version registered before the active one.
func (mm *ModelManager) Rollback() (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if len(mm.versions) < 2 {
		return ModelVersion{}, fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range mm.versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		return ModelVersion{}, fmt.Errorf("no active version found")
	}
	if currentIdx+1 >= len(mm.versions) {
		return ModelVersion{}, fmt.Errorf("no previous version available")
	}

	prev := mm.versions[currentIdx+1]
	if err := mm.activate(prev.Version); err != nil {
		return ModelVersion{}, err
	}
	prev.IsActive = true
	return prev, nil
}

// GetCurrentVersion returns the active version, or nil if none is active.
func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	for i := range mm.versions {
		if mm.versions[i].IsActive {
			v := mm.versions[i]
			return &v
		}
	}
	return nil
}

// ListVersions returns all model versions, newest first.
func (mm *ModelManager) ListVersions() []ModelVersion {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return append([]ModelVersion(nil), mm.versions...)
}

// Refresh re-reads the registry file so versions activated by another
// process become visible. On failure the in-memory versions are kept.
func (mm *ModelManager) Refresh() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	prev := mm.versions
	mm.versions = make([]ModelVersion, 0)
	if err := mm.loadVersions(); err != nil {
		mm.versions = prev
		return fmt.Errorf("refresh model versions: %w", err)
	}
	return nil
}

// loadVersions loads model versions from file
func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return json.Unmarshal(data, &mm.versions)
}

// saveVersions saves model versions to file
func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.versionsFile, data, 0o600)
}
