package main

import (
	"context"
	"errors"
	"os"
	"time"

	"trackmystacks/internal/cli"
	"trackmystacks/internal/log"
	"trackmystacks/internal/services"
	"trackmystacks/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout).WithComponent(log.ComponentWorker)
	logger.Info("Starting stacks-worker", log.FieldOperation, log.OpStartup)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required to consume snapshot events")
		os.Exit(1)
	}

	backend, err := cli.OpenBackend(cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err)
		os.Exit(1)
	}
	defer backend.Close()

	writer, err := cli.NewComparisonWriter(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize comparison writer", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	comparisons := services.NewComparisonService(backend.Ranges, services.WithComparisonLogger(logger))
	snapshotWorker := worker.NewSnapshotWorker(backend.Store, comparisons, writer, cfg.ComparisonWindow, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		logger.Info("Shutting down worker...")
	})

	// Recover comparisons for events missed while the worker was down
	logger.Info("Performing startup refresh...")
	if err := snapshotWorker.StartupRefresh(ctx); err != nil {
		logger.Error("Failed startup refresh", log.FieldError, err)
		// Don't exit - continue with normal operation
	}

	go func() {
		if err := amqpClient.ConsumeSnapshotEvents(ctx, snapshotWorker.HandleSnapshotEvent); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", log.FieldError, err)
				os.Exit(1)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
