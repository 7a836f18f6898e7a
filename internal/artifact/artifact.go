// Package artifact persists a trained career model to a single binary file.
//
// The file is a gob-encoded Envelope that records the schema the forest was
// trained against. Load rejects an artifact whose feature names, career list
// or schema version differ from the compiled schema, so a stale model can
// never be fed misaligned vectors.
package artifact

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"career-pulse/internal/forest"
	"career-pulse/internal/schema"
)

// Magic marks a career model artifact.
const Magic = "career-pulse/model"

// DefaultPath is where the trainer writes and predictors look by default.
const DefaultPath = "career_model.bin"

var (
	ErrNotFound       = errors.New("artifact: not found")
	ErrSchemaMismatch = errors.New("artifact: schema mismatch")
	ErrCorrupt        = errors.New("artifact: corrupt")
)

// Envelope is the on-disk form of a trained model.
type Envelope struct {
	Magic         string
	SchemaVersion int
	FeatureNames  []string
	Careers       []string
	TrainedAt     time.Time
	Forest        *forest.Forest
}

// New wraps a fitted forest with the current schema.
func New(f *forest.Forest) *Envelope {
	return &Envelope{
		Magic:         Magic,
		SchemaVersion: schema.Version,
		FeatureNames:  schema.FeatureNames(),
		Careers:       append([]string(nil), schema.Careers...),
		TrainedAt:     time.Now().UTC(),
		Forest:        f,
	}
}

// Check verifies the envelope against the compiled schema.
func (e *Envelope) Check() error {
	if e.Magic != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrCorrupt, e.Magic)
	}
	if e.SchemaVersion != schema.Version {
		return fmt.Errorf("%w: version %d, want %d", ErrSchemaMismatch, e.SchemaVersion, schema.Version)
	}
	if !schema.Equal(e.FeatureNames) {
		return fmt.Errorf("%w: feature names differ (%d stored, %d expected)", ErrSchemaMismatch, len(e.FeatureNames), schema.NumFeatures)
	}
	if !schema.EqualCareers(e.Careers) {
		return fmt.Errorf("%w: career list differs", ErrSchemaMismatch)
	}
	if e.Forest == nil {
		return fmt.Errorf("%w: no model", ErrCorrupt)
	}
	if err := e.Forest.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if e.Forest.NumFeatures != schema.NumFeatures || e.Forest.NumClasses != schema.NumCareers {
		return fmt.Errorf("%w: model shape %dx%d, want %dx%d", ErrSchemaMismatch,
			e.Forest.NumFeatures, e.Forest.NumClasses, schema.NumFeatures, schema.NumCareers)
	}
	return nil
}

// Encode writes the envelope to w.
func (e *Envelope) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(e)
}

// Decode reads and checks an envelope from r.
func Decode(r io.Reader) (*Envelope, error) {
	var e Envelope
	if err := gob.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := e.Check(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Save writes the envelope to path atomically. It encodes into a temporary
// file in the same directory, syncs it and renames it over path; on any
// failure the temporary file is removed and path is left untouched.
func Save(path string, e *Envelope) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = e.Encode(tmp); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Load reads and checks the artifact at path. A missing file yields
// ErrNotFound.
func Load(path string) (*Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	e, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return e, nil
}
