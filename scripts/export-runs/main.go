// Command export-runs dumps the runs of an experiment from the tracking store
// as newline-delimited JSON, one run per line, for offline analysis.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"
	"time"

	"iris-service/internal/common"
	"iris-service/internal/tracking"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunRecord is one exported run.
type RunRecord struct {
	RunID      string             `json:"run_id"`
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    time.Time          `json:"end_time"`
	Params     map[string]string  `json:"params"`
	Metrics    map[string]float64 `json:"metrics"`
	Tags       map[string]string  `json:"tags"`
	Registered []int              `json:"registered_versions,omitempty"`
}

func main() {
	var (
		trackingPath = flag.String("tracking", common.DefaultTrackingPath, "Tracking store directory")
		experiment   = flag.String("experiment", common.DefaultExperiment, "Experiment to export")
		modelName    = flag.String("model-name", common.DefaultModelName, "Registered model to cross-reference")
		status       = flag.String("status", "", "Only export runs with this status")
		outputPath   = flag.String("output", "", "Output file (default stdout)")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	store, err := tracking.OpenReadOnly(*trackingPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open tracking store")
	}
	defer store.Close()

	records, err := collect(store, *experiment, *modelName, *status)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read runs")
	}
	if len(records) == 0 {
		log.Warn().Str("experiment", *experiment).Msg("No runs found matching criteria")
	}

	var out io.Writer = os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			log.Fatal().Err(err).Msg("Failed to write JSON record")
		}
	}

	log.Info().Int("runs", len(records)).Str("experiment", *experiment).Msg("Export complete")
}

func collect(store *tracking.Store, experiment, modelName, status string) ([]RunRecord, error) {
	exp, err := store.GetExperimentByName(experiment)
	if err != nil {
		return nil, err
	}
	runs, err := store.SearchRuns(exp.ID, status)
	if err != nil {
		return nil, err
	}

	// A model that was never registered is not an error here.
	registered := make(map[string][]int)
	if versions, err := store.ListVersions(modelName); err == nil {
		for _, v := range versions {
			registered[v.RunID] = append(registered[v.RunID], v.Version)
		}
	}

	records := make([]RunRecord, 0, len(runs))
	for _, r := range runs {
		records = append(records, RunRecord{
			RunID:      r.ID,
			Name:       r.Name,
			Status:     r.Status,
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
			Params:     r.Params,
			Metrics:    r.Metrics,
			Tags:       r.Tags,
			Registered: registered[r.ID],
		})
	}
	return records, nil
}
