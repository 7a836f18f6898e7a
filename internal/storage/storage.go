// Package storage persists generated training rows so a dataset can be
// inspected, exported or retrained on without regenerating it.
//
// It uses BoltDB as the underlying storage engine. Rows live in a single
// bucket keyed by label and sequence number, so a cursor walk returns them
// grouped by label in generation order.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"career-pulse/internal/dataset"
	"career-pulse/internal/schema"

	"go.etcd.io/bbolt"
)

const (
	samplesBucket = "samples" // Bucket name for generated training rows
	metaBucket    = "meta"    // Bucket name for generation metadata

	metaKey = "generation"
	dbName  = "career-data.db"
)

// Meta describes how the stored rows were produced.
type Meta struct {
	Seed             int64     `json:"seed"`
	SamplesPerCareer int       `json:"samples_per_career"`
	Rows             int       `json:"rows"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Store provides persistent storage for training rows using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the database under dataPath and makes sure the
// buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(samplesBucket)); err != nil {
			return fmt.Errorf("create samples bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metaBucket)); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

func rowKey(label, seq int) []byte {
	return []byte(fmt.Sprintf("%03d_%06d", label, seq))
}

// nextSeq returns the sequence number following the last stored row of label.
func nextSeq(b *bbolt.Bucket, label int) int {
	prefix := []byte(fmt.Sprintf("%03d_", label))
	c := b.Cursor()
	k, _ := c.Seek([]byte(fmt.Sprintf("%03d_", label+1)))
	if k == nil {
		k, _ = c.Last()
	} else {
		k, _ = c.Prev()
	}
	if k == nil || !bytes.HasPrefix(k, prefix) {
		return 0
	}
	seq, err := strconv.Atoi(string(k[len(prefix):]))
	if err != nil {
		return 0
	}
	return seq + 1
}

func putRows(b *bbolt.Bucket, rows []dataset.Row) error {
	seq := make(map[int]int)
	for _, row := range rows {
		if row.Label < 0 || row.Label >= schema.NumCareers {
			return fmt.Errorf("row label %d: %w", row.Label, schema.ErrUnknownCareer)
		}
		next, ok := seq[row.Label]
		if !ok {
			next = nextSeq(b, row.Label)
		}
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row: %w", err)
		}
		if err := b.Put(rowKey(row.Label, next), data); err != nil {
			return fmt.Errorf("put row: %w", err)
		}
		seq[row.Label] = next + 1
	}
	return nil
}

// StoreRows appends rows after any rows already stored for their labels.
func (s *Store) StoreRows(rows []dataset.Row) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putRows(tx.Bucket([]byte(samplesBucket)), rows)
	})
}

// ReplaceDataset replaces every stored row with ds in one transaction and
// records meta alongside it.
func (s *Store) ReplaceDataset(ds *dataset.Dataset, meta Meta) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(samplesBucket)); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("drop samples bucket: %w", err)
		}
		b, err := tx.CreateBucket([]byte(samplesBucket))
		if err != nil {
			return fmt.Errorf("create samples bucket: %w", err)
		}
		if err := putRows(b, ds.Rows()); err != nil {
			return err
		}

		meta.Rows = ds.Len()
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(metaKey), data)
	})
}

// LoadDataset reads every stored row back in key order.
func (s *Store) LoadDataset() (*dataset.Dataset, error) {
	var rows []dataset.Row

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(samplesBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var row dataset.Row
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("unmarshal row %s: %w", k, err)
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return dataset.FromRows(rows), nil
}

// LoadMeta returns the metadata of the stored dataset; ok is false when no
// dataset has been stored.
func (s *Store) LoadMeta() (meta Meta, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(metaBucket)).Get([]byte(metaKey))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &meta)
	})
	return meta, ok, err
}

// CountRows returns the number of stored rows.
func (s *Store) CountRows() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(samplesBucket)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Clear removes all stored rows and metadata.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{samplesBucket, metaBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && err != bbolt.ErrBucketNotFound {
				return fmt.Errorf("drop %s bucket: %w", name, err)
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
