package main

import (
	"context"
	"os"
	"time"

	"occupancy/internal/backend"
	"occupancy/internal/cli"
	"occupancy/internal/log"
	"occupancy/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentImport)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendConfig.Type = backend.BackendType(cfg.ImportSource)
	if err := backendConfig.Validate(); err != nil {
		logger.Error("Invalid import source", log.FieldError, err, "source", cfg.ImportSource)
		os.Exit(1)
	}

	src, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize import source", log.FieldError, err, "source", cfg.ImportSource)
		os.Exit(1)
	}
	defer src.Close()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	processor := services.NewImportProcessor(src.Loader, repo, services.ImportProcessorConfig{
		Interval: cfg.ImportInterval,
		Timeout:  cfg.LoadTimeout,
	}, logger)

	if cfg.ImportInterval <= 0 {
		results, err := processor.RunOnce(context.Background())
		for _, r := range results {
			if r.Err == nil {
				logger.Info("Imported", log.FieldLocation, r.Location.String(), log.FieldRecords, r.Records)
			}
		}
		if err != nil {
			logger.Error("Import finished with errors", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Import processor stop failed", log.FieldError, err)
		}
	})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start import processor", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
