package ml

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"iris-service/internal/contract"
	"iris-service/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrackingStore(t *testing.T) *tracking.Store {
	t.Helper()
	store, err := tracking.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fixtureBytes(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(fixturePath)
	require.NoError(t, err)
	return data
}

// logRun records a finished run carrying artifact under "model".
func logRun(t *testing.T, store *tracking.Store, experiment string, artifact []byte) tracking.Run {
	t.Helper()
	exp, err := store.SetExperiment(experiment)
	require.NoError(t, err)
	run, err := store.StartRun(exp.ID, "test")
	require.NoError(t, err)
	require.NoError(t, store.LogArtifact(run.ID, "model", artifact))
	require.NoError(t, store.EndRun(run.ID, tracking.RunStatusFinished))
	return run
}

func TestLoad_File(t *testing.T) {
	binding, err := Load(context.Background(), nil, fixturePath, "")
	require.NoError(t, err)

	assert.Equal(t, "fixture-1", binding.Version)
	assert.Equal(t, "file:"+fixturePath, binding.Source)
	assert.Equal(t, contract.DefaultLabels, binding.Labels)

	class, _, err := binding.Scorer.Score([]float64{5.1, 3.5, 1.4, 0.2})
	require.NoError(t, err)
	assert.Equal(t, "setosa", binding.Labels[class])
}

func TestLoad_FileWithoutVersion(t *testing.T) {
	m := loadFixture(t)
	m.Version = ""
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.Save(path))

	binding, err := Load(context.Background(), nil, "file:"+path, "")
	require.NoError(t, err)
	assert.Equal(t, "file", binding.Version)
}

func TestLoad_Registry(t *testing.T) {
	store := newTrackingStore(t)
	run := logRun(t, store, "iris-classification", fixtureBytes(t))
	_, err := store.RegisterModel("iris_classifier", run.ID, "model")
	require.NoError(t, err)
	run2 := logRun(t, store, "iris-classification", fixtureBytes(t))
	_, err = store.RegisterModel("iris_classifier", run2.ID, "model")
	require.NoError(t, err)

	binding, err := Load(context.Background(), store, "models:/iris_classifier/latest", "iris-classification")
	require.NoError(t, err)
	assert.Equal(t, "2", binding.Version)
	assert.Equal(t, "models:/iris_classifier/2", binding.Source)

	binding, err = Load(context.Background(), store, "models:/iris_classifier/1", "")
	require.NoError(t, err)
	assert.Equal(t, "1", binding.Version)
}

func TestLoad_Run(t *testing.T) {
	store := newTrackingStore(t)
	run := logRun(t, store, "iris-classification", fixtureBytes(t))

	binding, err := Load(context.Background(), store, "runs:/"+run.ID+"/model", "")
	require.NoError(t, err)
	assert.Equal(t, run.ID[:7], binding.Version)
	assert.Equal(t, "runs:/"+run.ID+"/model", binding.Source)
}

func TestLoad_FallsBackToLatestRun(t *testing.T) {
	store := newTrackingStore(t)
	run := logRun(t, store, "iris-classification", fixtureBytes(t))

	binding, err := Load(context.Background(), store, "models:/iris_classifier/latest", "iris-classification")
	require.NoError(t, err)
	assert.Equal(t, run.ID[:7], binding.Version)
}

func TestLoad_Failures(t *testing.T) {
	store := newTrackingStore(t)
	broken := logRun(t, store, "broken", []byte(`{"kind":"gaussian_nb"}`))

	m := loadFixture(t)
	m.Features = []string{"petal_width", "petal_length", "sepal_width", "sepal_length"}
	reordered, err := m.Marshal()
	require.NoError(t, err)
	reorderedRun := logRun(t, store, "reordered", reordered)

	m = loadFixture(t)
	m.Labels = []string{"Iris-setosa", "Iris-versicolor", "Iris-virginica"}
	relabelled, err := m.Marshal()
	require.NoError(t, err)
	relabelledRun := logRun(t, store, "relabelled", relabelled)

	tests := []struct {
		name       string
		store      ModelStore
		ref        string
		experiment string
	}{
		{"unparseable reference", store, "s3://bucket/model", ""},
		{"missing file", nil, "file:/does/not/exist.json", ""},
		{"unregistered model without fallback", store, "models:/iris_classifier/latest", ""},
		{"unregistered model and unknown experiment", store, "models:/iris_classifier/latest", "missing"},
		{"missing run", store, "runs:/nope/model", ""},
		{"invalid artifact", store, "runs:/" + broken.ID + "/model", ""},
		{"invalid fallback artifact", store, "models:/iris_classifier/latest", "broken"},
		{"feature order mismatch", store, "runs:/" + reorderedRun.ID + "/model", ""},
		{"labels outside the contract enum", store, "runs:/" + relabelledRun.ID + "/model", ""},
		{"registry without store", nil, "models:/iris_classifier/latest", "iris-classification"},
		{"run without store", nil, "runs:/abc/model", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binding, err := Load(context.Background(), tt.store, tt.ref, tt.experiment)
			assert.Error(t, err)
			assert.Nil(t, binding)
		})
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, nil, fixturePath, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_BindsIntoService(t *testing.T) {
	binding, err := Load(context.Background(), nil, fixturePath, "")
	require.NoError(t, err)

	svc := contract.NewService(binding, nil)
	assert.True(t, svc.Health().Healthy())

	result, err := svc.Predict(context.Background(), contract.FeatureVector{
		SepalLength: 7.2, SepalWidth: 3.0, PetalLength: 5.8, PetalWidth: 1.6,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ClassIndex)
	assert.Equal(t, "virginica", result.ClassLabel)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
	assert.Equal(t, "fixture-1", result.ModelVersion)
}

func TestLoad_RejectsLabelsOutsideContract(t *testing.T) {
	m := loadFixture(t)
	m.Labels = []string{"versicolor", "setosa", "virginica"}
	data, err := m.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "swapped.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	binding, err := Load(context.Background(), nil, path, "")
	assert.ErrorIs(t, err, ErrInvalidModel)
	assert.Contains(t, err.Error(), `label 0 is "versicolor"`)
	assert.Nil(t, binding)
}
