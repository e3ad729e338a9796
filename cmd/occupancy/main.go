package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"occupancy/internal/amqp"
	"occupancy/internal/backend"
	"occupancy/internal/cache"
	"occupancy/internal/cli"
	apphttp "occupancy/internal/http"
	"occupancy/internal/log"
	"occupancy/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Report events are optional; the dashboard works without a broker.
	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, report events disabled", log.FieldError, err)
		} else {
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	svc := services.NewReportService(result.Loader, publisher, services.ReportServiceConfig{
		CacheSize:   cfg.ReportCacheSize,
		CacheTTL:    cfg.ReportCacheTTL,
		LoadTimeout: cfg.LoadTimeout,
	}, logger)

	if err := svc.LoadAll(context.Background()); err != nil {
		// Locations that failed stay unavailable; the page shows why.
		logger.Warn("Some locations could not be loaded", log.FieldError, err)
	}

	cacheManager := cache.NewManager(logger.Logger)
	cacheManager.Register(svc.Cache())
	cacheManager.StartCleanup(5 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, svc, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	})

	if cfg.ReloadInterval > 0 {
		go reloadLoop(ctx, svc, cfg.ReloadInterval, logger)
	}

	logger.Info("Starting occupancy server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// reloadLoop re-reads both series on every tick, picking up new imports.
func reloadLoop(ctx context.Context, svc *services.ReportService, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.LoadAll(ctx); err != nil {
				logger.Warn("Reload left some locations unavailable", log.FieldError, err)
			}
		}
	}
}
