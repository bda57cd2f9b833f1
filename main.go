package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/kartoza/sales-forecast/internal/artifacts"
	"github.com/kartoza/sales-forecast/internal/config"
	"github.com/kartoza/sales-forecast/internal/forecast"
	"github.com/kartoza/sales-forecast/internal/logging"
	"github.com/kartoza/sales-forecast/internal/monitoring"
	"github.com/kartoza/sales-forecast/internal/scaling"
	"github.com/kartoza/sales-forecast/internal/server"
)

var version = "dev"

func main() {
	// Parse command-line flags
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	host := flag.String("host", "", "HTTP listen host (overrides HOST)")
	artifactPath := flag.String("artifacts", "", "Model artifact directory or SQLite file (overrides ARTIFACT_PATH)")
	envFile := flag.String("env", ".env", "Optional env file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Sales Forecast API v%s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *artifactPath != "" {
		cfg.ArtifactPath = *artifactPath
	}
	cfg.Version = version

	logger := logging.Setup(cfg.LogLevel, cfg.LogPretty)
	logger.Info().Str("version", version).Str("addr", cfg.Addr()).Msg("Sales Forecast API starting")

	// A failed load leaves the service up in degraded mode
	var (
		model  forecast.Model
		scaler scaling.Scaler
	)
	bundle, err := artifacts.LoadBundle(cfg.ArtifactPath, logger)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.ArtifactPath).Msg("Model artifacts not loaded, serving degraded")
	} else {
		model = bundle.Model
		scaler = bundle.Scaler
	}

	svc := forecast.New(model, scaler, logger)
	mon := monitoring.New(monitoring.Config{
		BaselineRMSE: cfg.BaselineRMSE,
		BaselineMAPE: cfg.BaselineMAPE,
		Threshold:    cfg.MonitorThreshold,
	}, logger)

	srv := server.New(cfg, svc, mon, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		if err := srv.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error during shutdown")
		}
	}
}
