package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/emissions-regrid/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/emissions-regrid/internal/adapter/kafka"
	"github.com/couchcryptid/emissions-regrid/internal/adapter/netcdf"
	"github.com/couchcryptid/emissions-regrid/internal/config"
	"github.com/couchcryptid/emissions-regrid/internal/observability"
	"github.com/couchcryptid/emissions-regrid/internal/pipeline"
	"github.com/couchcryptid/emissions-regrid/internal/regrid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	loader := netcdf.NewHandler(cfg.BasePath, cfg.Species, cfg.ExtraIDs, logger)
	writer := netcdf.NewWriter(cfg.OutputPath, logger)

	store := regrid.NewWeightStore(cfg.WeightsDir, logger, metrics)
	regridder, err := regrid.New(cfg.OutGrid, store, logger)
	if err != nil {
		logger.Error("failed to build regridder", "error", err)
		os.Exit(1)
	}

	// Completion publishing is feature-flagged via KAFKA_BROKERS.
	var publisher pipeline.CompletionPublisher
	var kafkaPub *kafkaadapter.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPub
		logger.Info("completion publishing enabled", "topic", cfg.KafkaCompletionTopic)
	} else {
		logger.Info("completion publishing disabled")
	}

	var units []pipeline.Unit
	if !cfg.StartDate.IsZero() {
		units = pipeline.UnitsForRange(cfg.StartDate, cfg.EndDate, cfg.Sectors)
		logger.Info("units derived from date range",
			"start", cfg.StartDate.Format("2006-01-02"), "end", cfg.EndDate.Format("2006-01-02"))
	} else {
		units = pipeline.EnumerateUnits(cfg.Years, cfg.Months, cfg.DayTypes, cfg.Sectors)
	}
	p := pipeline.New(loader, regridder, writer, publisher, logger, metrics,
		units, cfg.Workers, cfg.SumZLevels, cfg.ClipExtent, cfg.OutputPath, cfg.MinFreeSpace)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the batch; a finished batch stops the process.
	exitCode := 0
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("pipeline error", "error", err)
		exitCode = 1
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	os.Exit(exitCode)
}
