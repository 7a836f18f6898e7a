package evaluate

import (
	"fmt"
	"os"

	"career-pulse/internal/dataset"
	"career-pulse/internal/storage"

	"github.com/rs/zerolog/log"
)

// DataLoader supplies the labelled rows a model is evaluated against.
type DataLoader struct {
	data   *dataset.Dataset
	Source string
}

// NewDataLoader creates an empty data loader
func NewDataLoader() *DataLoader {
	return &DataLoader{data: &dataset.Dataset{}}
}

// LoadFromStore loads the rows kept in a bbolt row store.
func (dl *DataLoader) LoadFromStore(store *storage.Store) error {
	ds, err := store.LoadDataset()
	if err != nil {
		return fmt.Errorf("failed to load stored rows: %w", err)
	}
	if ds.Len() == 0 {
		return fmt.Errorf("row store %s is empty", store.Path())
	}
	dl.set(ds, "store:"+store.Path())
	return nil
}

// LoadFromCSV loads rows exported by the trainer.
func (dl *DataLoader) LoadFromCSV(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	ds, err := dataset.ReadCSV(file)
	if err != nil {
		return fmt.Errorf("failed to read CSV file %s: %w", filePath, err)
	}
	dl.set(ds, "csv:"+filePath)
	return nil
}

// Generate draws a fresh synthetic dataset. A seed other than the training
// seed gives rows the model has never seen.
func (dl *DataLoader) Generate(seed int64, samples int) {
	gen := dataset.NewGenerator(seed, samples)
	dl.set(gen.Generate(), fmt.Sprintf("generated:seed=%d,samples=%d", seed, gen.Samples()))
}

func (dl *DataLoader) set(ds *dataset.Dataset, source string) {
	dl.data = ds
	dl.Source = source
	log.Info().
		Str("source", source).
		Int("rows", ds.Len()).
		Msg("Evaluation data loaded")
}

// Dataset returns the loaded rows.
func (dl *DataLoader) Dataset() *dataset.Dataset {
	return dl.data
}

// Len returns the number of loaded rows.
func (dl *DataLoader) Len() int {
	return dl.data.Len()
}
