package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/traffic-count-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/traffic-count-etl/internal/adapter/kafka"
	"github.com/couchcryptid/traffic-count-etl/internal/adapter/memstore"
	"github.com/couchcryptid/traffic-count-etl/internal/check"
	"github.com/couchcryptid/traffic-count-etl/internal/config"
	"github.com/couchcryptid/traffic-count-etl/internal/ingest"
	"github.com/couchcryptid/traffic-count-etl/internal/observability"
	"github.com/couchcryptid/traffic-count-etl/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store := memstore.New()
	var (
		loaders pipeline.FanoutLoader
		sinks   = pipeline.FanoutSink{store}
	)

	// Kafka publishing is feature-flagged via KAFKA_ENABLED. The writer loads
	// first so a batch the broker rejects never becomes queryable.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, writer)
		sinks = append(sinks, writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka publishing disabled")
	}
	loaders = append(loaders, store)

	source := ingest.NewSource(cfg.DataDir, cfg.Location, logger)
	checker := check.New(store, nil, logger, metrics)
	p := pipeline.New(source, loaders, checker, sinks, logger, metrics, cfg.ImportWorkers)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	exitCode := 0
	summary, err := p.Run(ctx)
	switch {
	case err != nil:
		logger.Error("import run failed", "error", err)
		exitCode = 1
	case cfg.ServeAfterImport:
		logger.Info("import run complete, serving until stopped",
			"counts", len(summary.Results), "failed", len(summary.Failed()))
		<-ctx.Done()
	default:
		if len(summary.Failed()) > 0 {
			exitCode = 1
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return exitCode
}
