package tracking

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
)

// ModelVersion is one registered version of a named model.
type ModelVersion struct {
	Name         string    `json:"name"`
	Version      int       `json:"version"`
	RunID        string    `json:"run_id"`
	ArtifactPath string    `json:"artifact_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// Source returns the run reference the version was registered from.
func (v ModelVersion) Source() string {
	return fmt.Sprintf("runs:/%s/%s", v.RunID, v.ArtifactPath)
}

// RegisterModel registers the run artifact as the next version of name.
// Versions start at 1 and increase monotonically.
func (s *Store) RegisterModel(name, runID, artifactPath string) (ModelVersion, error) {
	var mv ModelVersion
	err := s.update(func(tx *bbolt.Tx) error {
		if _, err := loadRun(tx, runID); err != nil {
			return err
		}
		if tx.Bucket([]byte(artifactsBucket)).Get([]byte(artifactKey(runID, artifactPath))) == nil {
			return fmt.Errorf("artifact %s of run %s: %w", artifactPath, runID, ErrNotFound)
		}

		b, err := tx.Bucket([]byte(registryBucket)).CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return fmt.Errorf("create registry bucket for %s: %w", name, err)
		}

		next := 1
		if k, _ := b.Cursor().Last(); k != nil {
			last, err := strconv.Atoi(string(k))
			if err != nil {
				return fmt.Errorf("corrupt version key %q: %w", k, err)
			}
			next = last + 1
		}

		mv = ModelVersion{
			Name:         name,
			Version:      next,
			RunID:        runID,
			ArtifactPath: artifactPath,
			CreatedAt:    time.Now().UTC(),
		}
		return putJSON(b, versionKey(next), mv)
	})
	return mv, err
}

// LatestVersion returns the highest registered version of name.
func (s *Store) LatestVersion(name string) (ModelVersion, error) {
	var mv ModelVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := modelBucket(tx, name)
		if err != nil {
			return err
		}
		k, v := b.Cursor().Last()
		if k == nil {
			return fmt.Errorf("model %q has no versions: %w", name, ErrNotFound)
		}
		return json.Unmarshal(v, &mv)
	})
	return mv, err
}

// GetVersion returns a specific version of name.
func (s *Store) GetVersion(name string, version int) (ModelVersion, error) {
	var mv ModelVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := modelBucket(tx, name)
		if err != nil {
			return err
		}
		if err := getJSON(b, versionKey(version), &mv); err != nil {
			return fmt.Errorf("model %q version %d: %w", name, version, err)
		}
		return nil
	})
	return mv, err
}

// ListVersions returns all versions of name in ascending order.
func (s *Store) ListVersions(name string) ([]ModelVersion, error) {
	var versions []ModelVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := modelBucket(tx, name)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var mv ModelVersion
			if err := json.Unmarshal(v, &mv); err != nil {
				return fmt.Errorf("decode version %s: %w", k, err)
			}
			versions = append(versions, mv)
			return nil
		})
	})
	return versions, err
}

func modelBucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	registry, err := bucket(tx, registryBucket)
	if err != nil {
		return nil, err
	}
	b := registry.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("registered model %q: %w", name, ErrNotFound)
	}
	return b, nil
}

// versionKey zero-pads so byte order matches numeric order.
func versionKey(v int) string {
	return fmt.Sprintf("%010d", v)
}
