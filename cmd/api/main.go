package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/example/ec-shopping-cart/internal/api"
	"github.com/example/ec-shopping-cart/internal/bootstrap"
	"github.com/example/ec-shopping-cart/internal/config"
	"github.com/example/ec-shopping-cart/internal/logger"
	"github.com/example/ec-shopping-cart/internal/telemetry"
)

const serviceName = "shopping-cart-api"

func main() {
	if err := run(); err != nil {
		slog.Error("shopping cart api stopped", slog.Any("err", err))
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

	log := logger.New(logger.Options{Service: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})

	// prices and totals are written as JSON numbers
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

	handlers := api.NewHandlers(app.Commands, app.Queries, app.Service.Ready, log)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handlers, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server started", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Kafka.ListenerEnabled {
		consumer, dispatcher := app.CommandListener()
		g.Go(func() error {
			log.Info("command listener started", slog.String("topic", cfg.Kafka.CommandsTopic))
			if err := consumer.Consume(gctx, dispatcher.HandleMessage); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
