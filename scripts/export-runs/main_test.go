package main

import (
	"testing"

	"iris-service/internal/common"
	"iris-service/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	store, err := tracking.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	exp, err := store.SetExperiment(common.DefaultExperiment)
	require.NoError(t, err)

	finished, err := store.StartRun(exp.ID, "good")
	require.NoError(t, err)
	require.NoError(t, store.LogParam(finished.ID, "var_smoothing", "1e-09"))
	require.NoError(t, store.LogArtifact(finished.ID, common.DefaultArtifactPath, []byte(`{}`)))
	require.NoError(t, store.EndRun(finished.ID, tracking.RunStatusFinished))
	_, err = store.RegisterModel(common.DefaultModelName, finished.ID, common.DefaultArtifactPath)
	require.NoError(t, err)

	failed, err := store.StartRun(exp.ID, "bad")
	require.NoError(t, err)
	require.NoError(t, store.EndRun(failed.ID, tracking.RunStatusFailed))

	all, err := collect(store, common.DefaultExperiment, common.DefaultModelName, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyFinished, err := collect(store, common.DefaultExperiment, common.DefaultModelName, tracking.RunStatusFinished)
	require.NoError(t, err)
	require.Len(t, onlyFinished, 1)
	assert.Equal(t, finished.ID, onlyFinished[0].RunID)
	assert.Equal(t, []int{1}, onlyFinished[0].Registered)
	assert.Equal(t, "1e-09", onlyFinished[0].Params["var_smoothing"])

	unregistered, err := collect(store, common.DefaultExperiment, "other_model", "")
	require.NoError(t, err)
	for _, r := range unregistered {
		assert.Empty(t, r.Registered)
	}

	_, err = collect(store, "missing", common.DefaultModelName, "")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}
