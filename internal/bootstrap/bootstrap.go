package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/ec-shopping-cart/internal/command"
	"github.com/example/ec-shopping-cart/internal/config"
	"github.com/example/ec-shopping-cart/internal/domain/cart"
	"github.com/example/ec-shopping-cart/internal/infrastructure/kafka"
	"github.com/example/ec-shopping-cart/internal/infrastructure/lock"
	"github.com/example/ec-shopping-cart/internal/infrastructure/store"
	"github.com/example/ec-shopping-cart/internal/listener"
	"github.com/example/ec-shopping-cart/internal/query"
)

// App holds the wired cart service and the resources it owns
type App struct {
	Config   config.Config
	Log      *slog.Logger
	Service  *cart.Service
	Commands *command.Handler
	Queries  *query.Handler

	closers []func() error
}

// Build connects the configured store, lock and event producer and assembles the service.
// On error every resource opened so far is released.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *App, err error) {
	if log == nil {
		log = slog.Default()
	}
	app := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			err = errors.Join(err, app.Close())
		}
	}()

	cartStore, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	locker, err := app.openLocker(ctx)
	if err != nil {
		return nil, err
	}

	opts := []cart.Option{
		cart.WithLocker(locker),
		cart.WithLogger(log),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		app.closers = append(app.closers, producer.Close)
		opts = append(opts, cart.WithPublisher(producer))
		log.Info("publishing cart events", slog.String("topic", cfg.Kafka.EventsTopic))
	}

	app.Service = cart.NewService(cartStore, opts...)
	app.Commands = command.NewHandler(app.Service)
	app.Queries = query.NewHandler(app.Service)
	return app, nil
}

func (a *App) openStore(ctx context.Context) (cart.Store, error) {
	switch a.Config.Store.Driver {
	case config.StoreMemory:
		a.Log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryCartStore(), nil

	case config.StorePostgres:
		db, err := store.ConnectPostgres(ctx, a.Config.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if err := store.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		a.Log.Info("connected to PostgreSQL")
		return store.NewPostgresCartStore(db), nil
	}

	return nil, fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
}

func (a *App) openLocker(ctx context.Context) (cart.Locker, error) {
	switch a.Config.Lock.Driver {
	case config.LockLocal:
		return lock.NewLocal(), nil

	case config.LockRedis:
		client, err := lock.NewRedisClient(ctx, a.Config.Lock.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.Log.Info("using redis lock")
		return lock.NewRedis(client, lock.RedisOptions{TTL: a.Config.Lock.TTL, Logger: a.Log}), nil
	}

	return nil, fmt.Errorf("unknown lock driver %q", a.Config.Lock.Driver)
}

// CommandListener returns the consumer of the commands topic and the dispatcher
// that executes its messages. Replies go to the replies topic.
func (a *App) CommandListener() (*kafka.Consumer, *listener.Dispatcher) {
	k := a.Config.Kafka

	replies := kafka.NewProducer(k.Brokers, k.RepliesTopic)
	consumer := kafka.NewConsumer(k.Brokers, k.CommandsTopic, k.ConsumerGroup, a.Log)
	a.closers = append(a.closers, replies.Close, consumer.Close)

	return consumer, listener.NewDispatcher(a.Commands, a.Queries, replies, a.Log)
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
