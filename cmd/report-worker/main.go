package main

import (
	"context"
	"errors"
	"os"
	"time"

	"occupancy/internal/amqp"
	"occupancy/internal/cli"
	"occupancy/internal/log"
	"occupancy/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting report-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the report worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reportWorker := worker.NewReportWorker(logger.Logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		for loc, st := range reportWorker.Stats() {
			logger.Info("Report activity", log.FieldLocation, loc.String(), "reports", st.Reports, log.FieldGrandTotal, st.LastGrandTotal)
		}
	})

	go func() {
		if err := amqpClient.ConsumeReportGenerated(ctx, reportWorker.HandleReportGenerated); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
