package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/tools"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadConfig(logger, (*config.Config).Validate)

	repo := cli.InitStore(logger, cfg.SQLiteDBPath)

	// Eventing is optional. A broker outage must not keep the ledger from
	// serving tool calls.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without eventing", applog.FieldError, err)
		} else {
			publisher = client
			logger.Info("AMQP event publishing enabled",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	service := services.NewLedgerService(repo, publisher)

	server := tools.NewServer(":"+cfg.Port, service)
	server.ReadTimeout = 10 * time.Second
	server.WriteTimeout = 10 * time.Second
	server.IdleTimeout = 60 * time.Second
	server.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, 15*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", applog.FieldError, err)
		}
		if err := service.Close(); err != nil {
			logger.Error("Service close failed", applog.FieldError, err)
		}
	})

	logger.Info("Ledger tool server starting", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", applog.FieldError, err)
	}

	<-done
}
