package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	DefaultTTL       = 10 * time.Second
	DefaultRetry     = 25 * time.Millisecond
	DefaultNamespace = "cart:lock"
)

// deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var ErrLockLost = errors.New("lock expired before release")

type RedisOptions struct {
	TTL       time.Duration
	Retry     time.Duration
	Namespace string
	Logger    *slog.Logger
}

// Redis is a per-key lock shared by every instance talking to the same Redis.
type Redis struct {
	client    redis.Cmdable
	ttl       time.Duration
	retry     time.Duration
	namespace string
	log       *slog.Logger
}

func NewRedis(client redis.Cmdable, opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Retry <= 0 {
		opts.Retry = DefaultRetry
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Redis{
		client:    client,
		ttl:       opts.TTL,
		retry:     opts.Retry,
		namespace: opts.Namespace,
		log:       opts.Logger.With("component", "redis-lock"),
	}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	name := r.namespace + ":" + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis SETNX %s: %w", name, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		n, err := releaseScript.Run(releaseCtx, r.client, []string{name}, token).Int()
		switch {
		case err != nil:
			r.log.Error("release lock failed", slog.String("key", name), slog.Any("err", err))
		case n == 0:
			r.log.Warn("release lock failed", slog.String("key", name), slog.Any("err", ErrLockLost))
		}
	}, nil
}
