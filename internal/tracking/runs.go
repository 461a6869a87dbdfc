package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// Run statuses
const (
	RunStatusRunning  = "RUNNING"
	RunStatusFinished = "FINISHED"
	RunStatusFailed   = "FAILED"
)

// Experiment groups runs under a name.
type Experiment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Run records a single training execution.
type Run struct {
	ID           string             `json:"id"`
	ExperimentID string             `json:"experiment_id"`
	Name         string             `json:"name"`
	Status       string             `json:"status"`
	StartTime    time.Time          `json:"start_time"`
	EndTime      time.Time          `json:"end_time"`
	Params       map[string]string  `json:"params"`
	Metrics      map[string]float64 `json:"metrics"`
	Tags         map[string]string  `json:"tags"`
	Artifacts    []string           `json:"artifacts"`
}

// ShortID returns the first n characters of the run id.
func (r Run) ShortID(n int) string {
	if len(r.ID) <= n {
		return r.ID
	}
	return r.ID[:n]
}

// SetExperiment returns the experiment called name, creating it when absent.
func (s *Store) SetExperiment(name string) (Experiment, error) {
	var exp Experiment
	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(experimentsBucket))
		err := getJSON(b, name, &exp)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		exp = Experiment{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
		return putJSON(b, name, exp)
	})
	return exp, err
}

// GetExperimentByName looks up an experiment.
func (s *Store) GetExperimentByName(name string) (Experiment, error) {
	var exp Experiment
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, experimentsBucket)
		if err != nil {
			return err
		}
		return getJSON(b, name, &exp)
	})
	if err != nil {
		return Experiment{}, fmt.Errorf("experiment %q: %w", name, err)
	}
	return exp, nil
}

// StartRun creates a RUNNING run in the experiment.
func (s *Store) StartRun(experimentID, name string) (Run, error) {
	run := Run{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		Name:         name,
		Status:       RunStatusRunning,
		StartTime:    time.Now().UTC(),
		Params:       map[string]string{},
		Metrics:      map[string]float64{},
		Tags:         map[string]string{},
	}
	err := s.update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket([]byte(runsBucket)), run.ID, run)
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// LogParam records a run parameter.
func (s *Store) LogParam(runID, key, value string) error {
	return s.updateRun(runID, func(r *Run) error {
		r.Params[key] = value
		return nil
	})
}

// LogMetric records a run metric.
func (s *Store) LogMetric(runID, key string, value float64) error {
	return s.updateRun(runID, func(r *Run) error {
		r.Metrics[key] = value
		return nil
	})
}

// SetTag records a run tag.
func (s *Store) SetTag(runID, key, value string) error {
	return s.updateRun(runID, func(r *Run) error {
		r.Tags[key] = value
		return nil
	})
}

// LogArtifact stores data under path for the run.
func (s *Store) LogArtifact(runID, path string, data []byte) error {
	return s.update(func(tx *bbolt.Tx) error {
		run, err := loadRun(tx, runID)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(artifactsBucket)).Put([]byte(artifactKey(runID, path)), data); err != nil {
			return fmt.Errorf("put artifact: %w", err)
		}
		for _, p := range run.Artifacts {
			if p == path {
				return nil
			}
		}
		run.Artifacts = append(run.Artifacts, path)
		return putJSON(tx.Bucket([]byte(runsBucket)), runID, run)
	})
}

// EndRun marks the run finished or failed.
func (s *Store) EndRun(runID, status string) error {
	if status != RunStatusFinished && status != RunStatusFailed {
		return fmt.Errorf("invalid terminal run status %q", status)
	}
	return s.updateRun(runID, func(r *Run) error {
		r.Status = status
		r.EndTime = time.Now().UTC()
		return nil
	})
}

// GetRun fetches a run by id.
func (s *Store) GetRun(runID string) (Run, error) {
	var run Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		run, err = loadRun(tx, runID)
		return err
	})
	return run, err
}

// GetArtifact returns the bytes logged under path for the run.
func (s *Store) GetArtifact(runID, path string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, artifactsBucket)
		if err != nil {
			return err
		}
		v := b.Get([]byte(artifactKey(runID, path)))
		if v == nil {
			return fmt.Errorf("artifact %s of run %s: %w", path, runID, ErrNotFound)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// SearchRuns lists the experiment's runs, newest first. An empty status matches all runs.
func (s *Store) SearchRuns(experimentID, status string) ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, runsBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var run Run
			if err := unmarshalRun(v, &run); err != nil {
				return nil // Skip malformed records
			}
			if run.ExperimentID != experimentID {
				return nil
			}
			if status != "" && run.Status != status {
				return nil
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	return runs, nil
}

func (s *Store) updateRun(runID string, fn func(*Run) error) error {
	return s.update(func(tx *bbolt.Tx) error {
		run, err := loadRun(tx, runID)
		if err != nil {
			return err
		}
		if err := fn(&run); err != nil {
			return err
		}
		return putJSON(tx.Bucket([]byte(runsBucket)), runID, run)
	})
}

func loadRun(tx *bbolt.Tx, runID string) (Run, error) {
	b, err := bucket(tx, runsBucket)
	if err != nil {
		return Run{}, err
	}
	data := b.Get([]byte(runID))
	if data == nil {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	var run Run
	if err := unmarshalRun(data, &run); err != nil {
		return Run{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, nil
}

func unmarshalRun(data []byte, run *Run) error {
	if err := json.Unmarshal(data, run); err != nil {
		return err
	}
	if run.Params == nil {
		run.Params = map[string]string{}
	}
	if run.Metrics == nil {
		run.Metrics = map[string]float64{}
	}
	if run.Tags == nil {
		run.Tags = map[string]string{}
	}
	return nil
}

func artifactKey(runID, path string) string {
	return runID + "/" + path
}
