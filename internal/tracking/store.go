// Package tracking provides experiment tracking and a model registry for the
// iris service. It uses BoltDB as the underlying storage engine to store
// experiments, runs with their params, metrics, tags and artifacts, and the
// registered versions of each named model.
//
// Training writes to the store; the inference service opens it read-only at
// startup to resolve a model reference.
package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFileName = "tracking.db"

	experimentsBucket = "experiments" // name -> Experiment
	runsBucket        = "runs"        // run id -> Run
	artifactsBucket   = "artifacts"   // run id + "/" + path -> bytes
	registryBucket    = "registry"    // model name -> nested bucket of versions
)

var (
	// ErrNotFound is returned when an experiment, run, artifact or model version does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReadOnly is returned by write operations on a store opened read-only.
	ErrReadOnly = errors.New("tracking store is read-only")
)

// Store provides persistent tracking storage using BoltDB.
type Store struct {
	db       *bbolt.DB
	readOnly bool
}

// New opens (creating if needed) the tracking store in dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tracking dir: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, dbFileName), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{experimentsBucket, runsBucket, artifactsBucket, registryBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing tracking store without taking the writer lock.
func OpenReadOnly(dir string) (*Store, error) {
	path := filepath.Join(dir, dbFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tracking database %s: %w", path, err)
	}

	db, err := bbolt.Open(path, 0o400, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking database: %w", err)
	}
	return &Store{db: db, readOnly: true}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.db.Update(fn)
}

// bucket returns the named top-level bucket or ErrNotFound. Read-only stores
// created by an older writer may lack some buckets.
func bucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket %s: %w", name, ErrNotFound)
	}
	return b, nil
}

func getJSON(b *bbolt.Bucket, key string, v any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.Put([]byte(key), data)
}
