package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"

	"iris-service/internal/common"
	"iris-service/internal/contract"
	"iris-service/internal/ml"
	"iris-service/internal/tracking"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type trainConfig struct {
	dataPath     string
	trackingPath string
	experiment   string
	modelName    string
	outputPath   string
	testSize     float64
	seed         int64
	varSmoothing float64
	refit        bool
}

// defaultDataPath is the bundled Fisher iris dataset.
const defaultDataPath = "data/iris.csv"

func main() {
	var tc trainConfig
	flag.StringVar(&tc.dataPath, "data", defaultDataPath, "Path to a CSV with sepal/petal columns and a species column")
	flag.StringVar(&tc.trackingPath, "tracking", envOr(common.EnvTrackingPath, common.DefaultTrackingPath), "Tracking store directory")
	flag.StringVar(&tc.experiment, "experiment", envOr(common.EnvExperiment, common.DefaultExperiment), "Experiment name")
	flag.StringVar(&tc.modelName, "model-name", common.DefaultModelName, "Registered model name")
	flag.StringVar(&tc.outputPath, "output", "", "Also write the model artifact to this file")
	flag.Float64Var(&tc.testSize, "test-size", 0.2, "Fraction of samples held out for evaluation")
	flag.Int64Var(&tc.seed, "seed", 42, "Random seed for the train/test split")
	flag.Float64Var(&tc.varSmoothing, "var-smoothing", ml.DefaultVarSmoothing, "Variance smoothing")
	flag.BoolVar(&tc.refit, "refit", true, "Refit the registered model on every sample after evaluation")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(tc); err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}
}

func run(tc trainConfig) error {
	data, err := ml.LoadCSVFile(tc.dataPath)
	if err != nil {
		return err
	}
	if !slices.Equal(data.Labels, contract.DefaultLabels) {
		return fmt.Errorf("dataset species %v, want %v", data.Labels, contract.DefaultLabels)
	}
	train, test, err := data.Split(tc.testSize, tc.seed)
	if err != nil {
		return fmt.Errorf("split dataset: %w", err)
	}
	log.Info().
		Int("samples", data.Len()).
		Int("train", train.Len()).
		Int("test", test.Len()).
		Strs("labels", data.Labels).
		Msg("dataset loaded")

	store, err := tracking.New(tc.trackingPath)
	if err != nil {
		return err
	}
	defer store.Close()

	exp, err := store.SetExperiment(tc.experiment)
	if err != nil {
		return err
	}
	current, err := store.StartRun(exp.ID, "gaussian-nb")
	if err != nil {
		return err
	}

	mv, eval, err := trainAndRegister(store, current, tc, data, train, test)
	if err != nil {
		if endErr := store.EndRun(current.ID, tracking.RunStatusFailed); endErr != nil {
			log.Warn().Err(endErr).Str("run_id", current.ID).Msg("failed to mark run as failed")
		}
		return err
	}

	fmt.Println("=== Classification Report ===")
	fmt.Print(eval.Report())
	fmt.Println("=============================")
	fmt.Printf("Run ID: %s\n", current.ID)
	fmt.Printf("Registered: models:/%s/%d\n", mv.Name, mv.Version)
	return nil
}

// trainAndRegister fits on train and scores test. With tc.refit the artifact
// is then refitted on all of data, so the logged metrics describe the holdout
// fit rather than the registered one.
func trainAndRegister(store *tracking.Store, run tracking.Run, tc trainConfig, data, train, test *ml.Dataset) (tracking.ModelVersion, ml.Evaluation, error) {
	params := map[string]string{
		"var_smoothing": strconv.FormatFloat(tc.varSmoothing, 'g', -1, 64),
		"test_size":     strconv.FormatFloat(tc.testSize, 'g', -1, 64),
		"random_state":  strconv.FormatInt(tc.seed, 10),
		"n_samples":     strconv.Itoa(data.Len()),
		"n_features":    strconv.Itoa(len(train.Features)),
		"refit":         strconv.FormatBool(tc.refit),
	}
	for k, v := range params {
		if err := store.LogParam(run.ID, k, v); err != nil {
			return tracking.ModelVersion{}, ml.Evaluation{}, err
		}
	}

	model, err := ml.Fit(train.X, train.Y, train.Features, train.Labels, tc.varSmoothing)
	if err != nil {
		return tracking.ModelVersion{}, ml.Evaluation{}, err
	}

	eval, err := ml.Evaluate(model, test)
	if err != nil {
		return tracking.ModelVersion{}, ml.Evaluation{}, err
	}
	log.Info().
		Float64("accuracy", eval.Accuracy).
		Float64("f1_score", eval.WeightedF1).
		Msg("model evaluated")

	if tc.refit {
		model, err = ml.Fit(data.X, data.Y, data.Features, data.Labels, tc.varSmoothing)
		if err != nil {
			return tracking.ModelVersion{}, eval, err
		}
		log.Info().Int("samples", data.Len()).Msg("model refitted on full dataset")
	}
	model.Version = run.ShortID(common.ShortRunIDLength)

	if err := store.LogMetric(run.ID, "accuracy", eval.Accuracy); err != nil {
		return tracking.ModelVersion{}, eval, err
	}
	if err := store.LogMetric(run.ID, "f1_score", eval.WeightedF1); err != nil {
		return tracking.ModelVersion{}, eval, err
	}
	for k, v := range map[string]string{"dataset": "iris", "algorithm": "GaussianNB"} {
		if err := store.SetTag(run.ID, k, v); err != nil {
			return tracking.ModelVersion{}, eval, err
		}
	}

	artifact, err := model.Marshal()
	if err != nil {
		return tracking.ModelVersion{}, eval, err
	}
	if err := store.LogArtifact(run.ID, common.DefaultArtifactPath, artifact); err != nil {
		return tracking.ModelVersion{}, eval, err
	}
	if tc.outputPath != "" {
		if err := model.Save(tc.outputPath); err != nil {
			return tracking.ModelVersion{}, eval, err
		}
		log.Info().Str("path", tc.outputPath).Msg("model artifact written")
	}

	if err := store.EndRun(run.ID, tracking.RunStatusFinished); err != nil {
		return tracking.ModelVersion{}, eval, err
	}

	mv, err := store.RegisterModel(tc.modelName, run.ID, common.DefaultArtifactPath)
	if err != nil {
		return tracking.ModelVersion{}, eval, err
	}
	log.Info().
		Str("model", mv.Name).
		Int("version", mv.Version).
		Str("run_id", run.ID).
		Msg("model registered")

	return mv, eval, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
