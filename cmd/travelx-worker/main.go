package main

import (
	"context"
	"errors"
	"os"
	"time"

	"travelx/internal/amqp"
	"travelx/internal/cli"
	"travelx/internal/config"
	"travelx/internal/log"
	gsheet "travelx/internal/sheets/google"
	"travelx/internal/storage"
	"travelx/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting travelx-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	sheets, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	if err := gsheet.Reachable(probeCtx); err != nil {
		// Messages stay queued until Sheets answers again.
		logger.Warn("Google Sheets not reachable at startup", log.FieldError, err)
	}
	cancelProbe()
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(repo, sheets)

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("SQLite close error", log.FieldError, err)
		}
	})

	logger.Info("Consuming record sync messages", "queue", cfg.AMQPQueue)
	if err := client.Run(ctx, syncWorker.HandleRecordSync); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
