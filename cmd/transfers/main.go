// The transfers service consumes TransferCreated events: one binding
// records transfers in PostgreSQL, a second independent binding logs them.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/LuizFelipeDev/microrabbit-banking/adapters/rabbitmq"
	"github.com/LuizFelipeDev/microrabbit-banking/bus"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/banking"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/config"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/metrics"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(*configPath, logger); err != nil {
		logger.Error("transfers service failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	metrics.Init()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := storage.NewStorage(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.DB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	var opts []rabbitmq.TransportOption
	if cfg.RabbitMQ.Durable {
		opts = append(opts, rabbitmq.WithDurable())
	}

	transport, closeBroker, err := rabbitmq.NewWithConn(rabbitmq.Config{
		URL:         cfg.RabbitMQ.URL,
		ConnTimeout: cfg.RabbitMQ.ConnTimeout.Std(),
	}, opts...)
	if err != nil {
		return err
	}
	defer closeBroker()

	registry := bus.NewRegistry()

	if err := bus.BindEvent(registry, banking.NewRecordTransferHandler(db, logger)); err != nil {
		return err
	}

	if err := bus.BindEvent(registry, banking.NewTransferLogHandler(logger)); err != nil {
		return err
	}

	registry.Seal()

	// Metrics endpoint only; this service has no API surface.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())

		if err := http.ListenAndServe(cfg.HTTP.Addr, mux); err != nil {
			logger.Error("metrics endpoint failed", "err", err)
		}
	}()

	subscriber := bus.NewSubscriber(transport, registry,
		bus.WithSubscriberLogger(logger),
		bus.WithObserver(metrics.ConsumeCounter()),
	)

	logger.Info("transfers worker consuming", "event", banking.TransferCreatedName)

	if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("graceful shutdown complete")

	return nil
}
