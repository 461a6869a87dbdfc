package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"iris-service/internal/client"
	"iris-service/internal/contract"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

// serviceFlags are shared by the commands that call the HTTP API.
type serviceFlags struct {
	url     string
	timeout time.Duration
}

func (f *serviceFlags) set(fs *flag.FlagSet) {
	fs.StringVar(&f.url, "url", defaultServiceURL(), "Base URL of the iris service")
	fs.DurationVar(&f.timeout, "timeout", 5*time.Second, "Request timeout")
}

func (f *serviceFlags) client() *client.Client {
	return client.New(f.url, f.timeout)
}

type healthCmd struct {
	serviceFlags
	out io.Writer
}

var _ subcommands.Command = &healthCmd{}

func (*healthCmd) Name() string     { return "health" }
func (*healthCmd) Synopsis() string { return "show service health" }
func (*healthCmd) Usage() string {
	return "health [-url URL]\n  Print the service health. Exits 1 when the service is degraded.\n"
}
func (c *healthCmd) SetFlags(fs *flag.FlagSet) { c.serviceFlags.set(fs) }

func (c *healthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	health, err := c.client().Health(ctx)
	if err != nil {
		log.Error().Err(err).Str("url", c.url).Msg("health check failed")
		return subcommands.ExitFailure
	}
	if err := printJSON(c.out, health); err != nil {
		return subcommands.ExitFailure
	}
	if !health.Healthy() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type contractCmd struct {
	serviceFlags
	out io.Writer
}

var _ subcommands.Command = &contractCmd{}

func (*contractCmd) Name() string     { return "contract" }
func (*contractCmd) Synopsis() string { return "print the input and output schemas" }
func (*contractCmd) Usage() string {
	return "contract [-url URL]\n  Print the contract description served by the service.\n"
}
func (c *contractCmd) SetFlags(fs *flag.FlagSet) { c.serviceFlags.set(fs) }

func (c *contractCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	raw, err := c.client().Contract(ctx)
	if err != nil {
		log.Error().Err(err).Str("url", c.url).Msg("contract request failed")
		return subcommands.ExitFailure
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		log.Error().Err(err).Msg("contract is not valid JSON")
		return subcommands.ExitFailure
	}
	buf.WriteByte('\n')
	if _, err := buf.WriteTo(c.out); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type predictCmd struct {
	serviceFlags
	out      io.Writer
	features contract.FeatureVector
}

var _ subcommands.Command = &predictCmd{}

func (*predictCmd) Name() string     { return "predict" }
func (*predictCmd) Synopsis() string { return "classify one flower" }
func (*predictCmd) Usage() string {
	return "predict -sepal-length N -sepal-width N -petal-length N -petal-width N [-url URL]\n" +
		"  Submit one set of measurements in centimetres and print the prediction.\n"
}

func (c *predictCmd) SetFlags(fs *flag.FlagSet) {
	c.serviceFlags.set(fs)
	fs.Float64Var(&c.features.SepalLength, "sepal-length", 0, "Sepal length (cm)")
	fs.Float64Var(&c.features.SepalWidth, "sepal-width", 0, "Sepal width (cm)")
	fs.Float64Var(&c.features.PetalLength, "petal-length", 0, "Petal length (cm)")
	fs.Float64Var(&c.features.PetalWidth, "petal-width", 0, "Petal width (cm)")
}

func (c *predictCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	result, err := c.client().Predict(ctx, c.features)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "validation_error" {
			fmt.Fprintln(c.out, apiErr.Error())
			return subcommands.ExitUsageError
		}
		log.Error().Err(err).Str("url", c.url).Msg("prediction failed")
		return subcommands.ExitFailure
	}
	if err := printJSON(c.out, result); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write output")
		return err
	}
	return nil
}
