package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iris-service/internal/cfg"
	"iris-service/internal/contract"
	"iris-service/internal/logging"
	"iris-service/internal/metrics"
	"iris-service/internal/ml"
	"iris-service/internal/server"
	"iris-service/internal/tracking"

	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File:   c.LogFile,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// The binding is fixed before the listener starts.
	binding := loadModel(ctx, c)
	svc := contract.NewService(binding, metrics.NewServiceMetrics(m))

	httpMetrics := metrics.NewHTTPMetrics(m)
	srv := server.New(svc, server.Options{
		Addr:           c.Addr(),
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		MaxBodyBytes:   c.MaxBodyBytes,
		AllowedOrigins: c.AllowedOrigins,
		Gatherer:       m.Gatherer(),
		Requests:       httpMetrics,
		Streams:        httpMetrics,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("inference server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, srv, c.ShutdownTimeout)

	log.Info().
		Float64("error_rate", m.ErrorRate()).
		Msg("inference server stopped")
}

// loadModel resolves the configured reference. Failures are logged and the
// service keeps running without a model.
func loadModel(ctx context.Context, c cfg.Settings) *contract.Binding {
	var store ml.ModelStore
	ts, err := tracking.OpenReadOnly(c.TrackingPath)
	if err != nil {
		log.Warn().Err(err).Str("path", c.TrackingPath).Msg("tracking store unavailable")
	} else {
		defer ts.Close()
		store = ts
	}

	binding, err := ml.Load(ctx, store, c.ModelReference, c.Experiment)
	if err != nil {
		log.Error().Err(err).
			Str("reference", c.ModelReference).
			Msg("Failed to load model, serving without one")
		return nil
	}
	return binding
}

// waitForShutdown blocks until a signal arrives or ctx is canceled, then
// drains the server within timeout.
func waitForShutdown(ctx context.Context, srv *server.Server, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
}
