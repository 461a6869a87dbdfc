package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"iris-service/internal/common"
	"iris-service/internal/tracking"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

type trackingFlags struct {
	path string
}

func (f *trackingFlags) set(fs *flag.FlagSet) {
	fs.StringVar(&f.path, "tracking", defaultTrackingPath(), "Tracking store directory")
}

func (f *trackingFlags) open() (*tracking.Store, bool) {
	store, err := tracking.OpenReadOnly(f.path)
	if err != nil {
		log.Error().Err(err).Str("path", f.path).Msg("cannot open tracking store")
		return nil, false
	}
	return store, true
}

type runsCmd struct {
	trackingFlags
	out        io.Writer
	experiment string
	status     string
}

var _ subcommands.Command = &runsCmd{}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list training runs of an experiment" }
func (*runsCmd) Usage() string {
	return "runs [-experiment NAME] [-status FINISHED|FAILED|RUNNING] [-tracking DIR]\n" +
		"  List runs, newest first, with their metrics.\n"
}

func (c *runsCmd) SetFlags(fs *flag.FlagSet) {
	c.trackingFlags.set(fs)
	fs.StringVar(&c.experiment, "experiment", envOr(common.EnvExperiment, common.DefaultExperiment), "Experiment name")
	fs.StringVar(&c.status, "status", "", "Only list runs with this status")
}

func (c *runsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, ok := c.open()
	if !ok {
		return subcommands.ExitFailure
	}
	defer store.Close()

	exp, err := store.GetExperimentByName(c.experiment)
	if err != nil {
		log.Error().Err(err).Str("experiment", c.experiment).Msg("experiment lookup failed")
		return subcommands.ExitFailure
	}
	runs, err := store.SearchRuns(exp.ID, strings.ToUpper(c.status))
	if err != nil {
		log.Error().Err(err).Msg("run search failed")
		return subcommands.ExitFailure
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tMETRICS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.ShortID(common.ShortRunIDLength), r.Status, r.StartTime.Format(time.RFC3339), formatMetrics(r.Metrics))
	}
	if err := tw.Flush(); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type modelsCmd struct {
	trackingFlags
	out  io.Writer
	name string
}

var _ subcommands.Command = &modelsCmd{}

func (*modelsCmd) Name() string     { return "models" }
func (*modelsCmd) Synopsis() string { return "list registered versions of a model" }
func (*modelsCmd) Usage() string {
	return "models [-name NAME] [-tracking DIR]\n  List registered versions and their source runs.\n"
}

func (c *modelsCmd) SetFlags(fs *flag.FlagSet) {
	c.trackingFlags.set(fs)
	fs.StringVar(&c.name, "name", common.DefaultModelName, "Registered model name")
}

func (c *modelsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, ok := c.open()
	if !ok {
		return subcommands.ExitFailure
	}
	defer store.Close()

	versions, err := store.ListVersions(c.name)
	if err != nil {
		log.Error().Err(err).Str("model", c.name).Msg("version lookup failed")
		return subcommands.ExitFailure
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tREFERENCE\tSOURCE\tREGISTERED")
	for _, v := range versions {
		fmt.Fprintf(tw, "%d\tmodels:/%s/%d\t%s\t%s\n",
			v.Version, v.Name, v.Version, v.Source(), v.CreatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func formatMetrics(metrics map[string]float64) string {
	if len(metrics) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.4f", k, metrics[k]))
	}
	return strings.Join(parts, " ")
}
