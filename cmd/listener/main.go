package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-shopping-cart/internal/bootstrap"
	"github.com/example/ec-shopping-cart/internal/config"
	"github.com/example/ec-shopping-cart/internal/logger"
	"github.com/example/ec-shopping-cart/internal/telemetry"
)

const serviceName = "shopping-cart-listener"

func main() {
	if err := run(); err != nil {
		slog.Error("shopping cart listener stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// this process exists only to consume commands
	cfg.Kafka.ListenerEnabled = true
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(logger.Options{Service: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})
	decimal.MarshalJSONWithoutQuotes = true

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Env:         cfg.AppEnv,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", slog.Any("err", err))
		}
	}()

	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("close resources failed", slog.Any("err", err))
		}
	}()

	consumer, dispatcher := app.CommandListener()

	log.Info("listening for cart commands",
		slog.Any("brokers", cfg.Kafka.Brokers),
		slog.String("topic", cfg.Kafka.CommandsTopic),
		slog.String("group", cfg.Kafka.ConsumerGroup))

	if err := consumer.Consume(ctx, dispatcher.HandleMessage); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info("shutting down")
	return nil
}
