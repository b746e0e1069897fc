// Command ledger-exporter consumes ledger events from the broker and mirrors
// newly created records into a Google spreadsheet.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/sheets"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentExporter)
	cfg := cli.LoadConfig(logger, (*config.Config).ValidateExport)

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)

	sheetsClient, err := sheets.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	client := connectBroker(ctx, logger, cfg)
	if client == nil {
		return
	}
	defer client.Close()

	exportWorker := worker.NewExportWorker(sheetsClient)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consume(gctx, logger, cfg, client, exportWorker)
	})

	logger.Info("Exporter started",
		"queue", cfg.AMQPQueue,
		"spreadsheet", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Exporter stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	<-done
}

// connectBroker dials the broker, retrying on the configured interval until
// it connects or shutdown is requested.
func connectBroker(ctx context.Context, logger *applog.Logger, cfg *config.Config) *amqp.Client {
	for {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err == nil {
			return client
		}

		logger.Warn("AMQP connection failed, retrying",
			applog.FieldError, err,
			"retry_in", cfg.ExportRetryInterval.String())

		select {
		case <-ctx.Done():
			logger.Info("Shutdown requested before broker connection established")
			return nil
		case <-time.After(cfg.ExportRetryInterval):
		}
	}
}

// consume runs the event loop, reconnecting when the broker drops the
// connection. Any other failure ends the exporter.
func consume(ctx context.Context, logger *applog.Logger, cfg *config.Config, client *amqp.Client, w *worker.ExportWorker) error {
	handler := w.Handler(ctx)

	for {
		err := client.ConsumeExpenseEvents(ctx, handler)
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if !amqp.IsConnectionError(err) {
			return err
		}

		logger.Warn("Broker connection lost, reconnecting", applog.FieldError, err)
		if err := client.Reconnect(ctx, cfg.AMQPURL); err != nil {
			return err
		}
	}
}
