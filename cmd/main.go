package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/estensen/contract-activity/internal/api"
	"github.com/estensen/contract-activity/internal/config"
	"github.com/estensen/contract-activity/internal/database"
	"github.com/estensen/contract-activity/internal/explorer"
	"github.com/estensen/contract-activity/internal/export"
	"github.com/estensen/contract-activity/internal/loader"
	"github.com/estensen/contract-activity/internal/logging"
	"github.com/estensen/contract-activity/internal/pipeline"
	"github.com/estensen/contract-activity/internal/storage"
	"github.com/estensen/contract-activity/internal/utils"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	req, err := pipeline.RequestFromConfig(cfg)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Exports go to MinIO when it is configured, and to the local export dir otherwise.
	var store storage.Storage
	if cfg.MinIO.Enabled() {
		store, err = storage.SetupMinIOStorage(ctx, cfg.MinIO, logger)
	} else {
		store, err = storage.NewLocalStorage(cfg.ExportDir)
	}
	if err != nil {
		logger.Fatal("Error setting up export storage", zap.Error(err))
	}

	opts := []pipeline.Option{pipeline.WithExporter(export.NewExporter(store, logger))}

	var history api.HistoryStore
	if cfg.ClickHouse.Enabled() {
		conn, err := database.NewClickHouseConnection(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Fatal("Error connecting to ClickHouse", zap.Error(err))
		}
		defer conn.Close()

		if err := database.EnsureSchema(ctx, conn); err != nil {
			logger.Fatal("Error creating ClickHouse schema", zap.Error(err))
		}
		opts = append(opts, pipeline.WithLoader(loader.NewClickHouseLoader(conn)))
		history = database.NewActivityStore(conn)
	}

	cycle := pipeline.NewCycle(explorer.NewClient(cfg.FetchTimeout), logger, opts...)
	server := api.NewServer(cycle, req, history, logger)

	// In serve mode the initial contract is optional; POST /fetch can supply one.
	if cfg.ContractAddress != "" || !cfg.Serve {
		snap, err := runOnce(ctx, cycle, req, logger)
		if err != nil && !cfg.Serve {
			logger.Fatal("Contract activity cycle failed", zap.Error(err))
		}
		if snap != nil {
			server.SetSnapshot(snap)
		}
	}

	if !cfg.Serve {
		return
	}

	if err := server.Start(ctx, cfg.APIAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("API server stopped", zap.Error(err))
	}
	logger.Info("API server shut down")
}

// runOnce fetches, displays and publishes one snapshot. An empty result is
// displayed and returned without an error.
func runOnce(ctx context.Context, cycle *pipeline.Cycle, req pipeline.Request, logger *zap.Logger) (*pipeline.Snapshot, error) {
	snap, err := cycle.Run(ctx, req)
	if err != nil && !errors.Is(err, pipeline.ErrEmptyResult) {
		return nil, err
	}

	utils.DisplayReport(os.Stdout, utils.Report{
		AppName: req.AppName,
		Summary: snap.Summary,
		Views:   snap.Views,
		Events:  snap.Events,
		Skipped: snap.Skipped,
	})

	if err := cycle.Publish(ctx, snap); err != nil {
		logger.Warn("Publishing snapshot failed", zap.Error(err))
	} else if !snap.Empty() {
		logger.Info("Contract activity pipeline completed successfully")
	}
	return snap, nil
}
