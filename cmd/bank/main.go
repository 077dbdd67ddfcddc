// The bank service exposes the HTTP API: it accepts transfer commands,
// moves balances, and publishes TransferCreated to the broker.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/LuizFelipeDev/microrabbit-banking/adapters/rabbitmq"
	"github.com/LuizFelipeDev/microrabbit-banking/bus"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/api"
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
		logger.Error("bank service failed", "err", err)
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

	publisher := bus.NewPublisher(transport, bus.WithPublisherLogger(logger))

	registry := bus.NewRegistry()
	if err := bus.BindCommand(registry, banking.NewCreateTransferHandler(db, publisher, logger)); err != nil {
		return err
	}

	registry.Seal()

	dispatcher := bus.NewDispatcher(registry,
		bus.WithMiddleware(metrics.DispatchCounter()),
		bus.WithDispatcherLogger(logger),
	)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewAPI(dispatcher, db, logger).Router(),
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("bank api listening", "addr", cfg.HTTP.Addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Std())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("graceful shutdown complete")

	return nil
}
