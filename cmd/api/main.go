package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/Anilcodes01/proto-book/internal/api"
	"github.com/Anilcodes01/proto-book/internal/app"
	"github.com/Anilcodes01/proto-book/internal/config"
	"github.com/Anilcodes01/proto-book/internal/extract"
	"github.com/Anilcodes01/proto-book/internal/logging"
	"github.com/Anilcodes01/proto-book/internal/pipeline"
	"github.com/Anilcodes01/proto-book/internal/telemetry"
	"github.com/Anilcodes01/proto-book/internal/webhook"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load env file %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Telemetry.ServiceName,
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("set GOMAXPROCS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	records, err := app.OpenRecordStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer func() {
		if err := records.Close(); err != nil {
			logger.Warn().Err(err).Msg("record store close failed")
		}
	}()

	artifacts, err := app.OpenArtifactStore(ctx, cfg.Storage, true)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	defer func() {
		if err := artifacts.Close(); err != nil {
			logger.Warn().Err(err).Msg("artifact store close failed")
		}
	}()

	cache, err := app.NewTemplateCache(cfg.Templates, logger)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	locator := app.NewLocator(cfg.Renderer)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	processor, err := pipeline.NewProcessor(pipeline.Deps{
		Records:   records,
		Artifacts: artifacts,
		Extractor: extract.Docx{},
		Templates: cache,
		Renderer:  app.NewRenderer(cfg.Renderer, locator, logger),
		Webhook: webhook.NewClient(webhook.Config{
			SigningSecret: cfg.Webhook.SigningSecret,
			Timeout:       cfg.Webhook.Timeout,
			MaxAttempts:   cfg.Webhook.MaxAttempts,
		}),
		WebhookURL: cfg.Webhook.URL,
		Metrics:    pipeline.NewMetrics(registry),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	server := api.NewServer(api.Options{
		Logger:    logger,
		Processor: processor,
		Books:     records,
		Registry:  registry,
		Checks: map[string]api.Check{
			"records":   records.Ping,
			"artifacts": artifacts.Ping,
			"renderer": func(ctx context.Context) error {
				_, err := locator.Locate(ctx)
				return err
			},
		},
	})

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.API.Addr).
			Str("renderer_mode", cfg.Renderer.Mode).
			Str("storage", cfg.Storage.Backend).
			Str("database", cfg.Database.Backend).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
