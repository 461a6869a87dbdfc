package ml

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"iris-service/internal/common"
	"iris-service/internal/contract"
	"iris-service/internal/tracking"

	"github.com/rs/zerolog/log"
)

// ModelStore is the part of the tracking store the provider reads from.
type ModelStore interface {
	LatestVersion(name string) (tracking.ModelVersion, error)
	GetVersion(name string, version int) (tracking.ModelVersion, error)
	GetArtifact(runID, path string) ([]byte, error)
	GetExperimentByName(name string) (tracking.Experiment, error)
	SearchRuns(experimentID, status string) ([]tracking.Run, error)
}

// Load resolves ref into a binding. Registry references that cannot be
// resolved fall back to the newest finished run of experiment. store may be
// nil when ref points at a file.
func Load(ctx context.Context, store ModelStore, ref string, experiment string) (*contract.Binding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := tracking.ParseReference(ref)
	if err != nil {
		return nil, err
	}

	switch parsed.Kind {
	case tracking.KindFile:
		return loadFile(parsed.Path)

	case tracking.KindRun:
		if store == nil {
			return nil, errors.New("run reference requires a tracking store")
		}
		return loadRunArtifact(store, parsed.RunID, parsed.ArtifactPath)

	case tracking.KindRegistry:
		if store == nil {
			return nil, errors.New("registry reference requires a tracking store")
		}
		binding, regErr := loadRegistered(store, parsed)
		if regErr == nil {
			return binding, nil
		}
		if experiment == "" {
			return nil, regErr
		}

		log.Warn().Err(regErr).Str("reference", ref).Str("experiment", experiment).
			Msg("Registry lookup failed, falling back to latest run")

		binding, err := loadLatestRun(ctx, store, experiment)
		if err != nil {
			return nil, fmt.Errorf("%w; fallback: %v", regErr, err)
		}
		return binding, nil
	}

	return nil, fmt.Errorf("%w: %q", tracking.ErrInvalidReference, ref)
}

func loadFile(path string) (*contract.Binding, error) {
	m, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	version := m.Version
	if version == "" {
		version = "file"
	}
	return bind(m, version, "file:"+path)
}

func loadRunArtifact(store ModelStore, runID, path string) (*contract.Binding, error) {
	data, err := store.GetArtifact(runID, path)
	if err != nil {
		return nil, err
	}
	m, err := UnmarshalModel(data)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	run := tracking.Run{ID: runID}
	return bind(m, run.ShortID(common.ShortRunIDLength), fmt.Sprintf("runs:/%s/%s", runID, path))
}

func loadRegistered(store ModelStore, ref tracking.Reference) (*contract.Binding, error) {
	var (
		mv  tracking.ModelVersion
		err error
	)
	if ref.Version == 0 {
		mv, err = store.LatestVersion(ref.Name)
	} else {
		mv, err = store.GetVersion(ref.Name, ref.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}

	data, err := store.GetArtifact(mv.RunID, mv.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	m, err := UnmarshalModel(data)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return bind(m, strconv.Itoa(mv.Version), fmt.Sprintf("models:/%s/%d", mv.Name, mv.Version))
}

func loadLatestRun(ctx context.Context, store ModelStore, experiment string) (*contract.Binding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exp, err := store.GetExperimentByName(experiment)
	if err != nil {
		return nil, err
	}
	runs, err := store.SearchRuns(exp.ID, tracking.RunStatusFinished)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no finished runs in experiment %q: %w", experiment, tracking.ErrNotFound)
	}
	return loadRunArtifact(store, runs[0].ID, common.DefaultArtifactPath)
}

// bind checks the model's feature and label order against the contract and
// wraps it.
func bind(m *GaussianNB, version, source string) (*contract.Binding, error) {
	if len(m.Features) != len(contract.FeatureNames) {
		return nil, fmt.Errorf("%w: model has %d features, want %d", ErrInvalidModel, len(m.Features), len(contract.FeatureNames))
	}
	for i, name := range contract.FeatureNames {
		if m.Features[i] != name {
			return nil, fmt.Errorf("%w: feature %d is %q, want %q", ErrInvalidModel, i, m.Features[i], name)
		}
	}
	// The published contract enumerates prediction_label.
	if len(m.Labels) != len(contract.DefaultLabels) {
		return nil, fmt.Errorf("%w: model has %d labels, want %d", ErrInvalidModel, len(m.Labels), len(contract.DefaultLabels))
	}
	for i, label := range contract.DefaultLabels {
		if m.Labels[i] != label {
			return nil, fmt.Errorf("%w: label %d is %q, want %q", ErrInvalidModel, i, m.Labels[i], label)
		}
	}

	log.Info().
		Str("version", version).
		Str("source", source).
		Strs("labels", m.Labels).
		Msg("Model loaded")

	return &contract.Binding{
		Scorer:  m,
		Labels:  append([]string(nil), m.Labels...),
		Version: version,
		Source:  source,
	}, nil
}
