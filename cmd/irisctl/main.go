// Command irisctl talks to a running iris service and inspects the tracking
// store.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"iris-service/internal/common"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	os.Exit(int(execute(context.Background(), os.Args[1:], os.Stdout)))
}

func execute(ctx context.Context, args []string, out io.Writer) subcommands.ExitStatus {
	fs := flag.NewFlagSet("irisctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cmdr := newCommander(fs, out)
	if err := fs.Parse(args); err != nil {
		return subcommands.ExitUsageError
	}
	return cmdr.Execute(ctx)
}

func newCommander(fs *flag.FlagSet, out io.Writer) *subcommands.Commander {
	cmdr := subcommands.NewCommander(fs, "irisctl")
	cmdr.Register(cmdr.HelpCommand(), "")
	cmdr.Register(cmdr.FlagsCommand(), "")
	cmdr.Register(cmdr.CommandsCommand(), "")

	cmdr.Register(&healthCmd{out: out}, "service")
	cmdr.Register(&contractCmd{out: out}, "service")
	cmdr.Register(&predictCmd{out: out}, "service")

	cmdr.Register(&runsCmd{out: out}, "tracking")
	cmdr.Register(&modelsCmd{out: out}, "tracking")
	return cmdr
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultServiceURL() string {
	return envOr(common.EnvServiceURL, common.DefaultServiceURL)
}

func defaultTrackingPath() string {
	return envOr(common.EnvTrackingPath, common.DefaultTrackingPath)
}
