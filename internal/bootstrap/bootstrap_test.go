package bootstrap

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-shopping-cart/internal/command"
	"github.com/example/ec-shopping-cart/internal/config"
	"github.com/example/ec-shopping-cart/internal/query"
)

func TestBuild_Memory(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, config.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	_, err = app.Commands.AddProductInCart(ctx, command.AddProductInCart{
		UserID:  "user-1",
		Product: command.ProductPayload{ProductID: "P1", Price: decimal.NewFromInt(100), Quantity: 2},
	})
	require.NoError(t, err)

	resp, err := app.Queries.ViewCart(ctx, query.ViewCart{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.ShoppingCart.TotalQuantity)
	assert.NoError(t, app.Service.Ready(ctx))
}

func TestBuild_UnknownDrivers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"store", func(c *config.Config) { c.Store.Driver = "mongo" }, "unknown store driver"},
		{"lock", func(c *config.Config) { c.Lock.Driver = "etcd" }, "unknown lock driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)

			app, err := Build(context.Background(), cfg, nil)

			assert.Nil(t, app)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestBuild_UnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Lock.Driver = config.LockRedis
	cfg.Lock.RedisURL = "redis://127.0.0.1:1/0"

	app, err := Build(context.Background(), cfg, nil)

	assert.Nil(t, app)
	assert.ErrorContains(t, err, "redis ping")
}

func TestApp_CloseOrder(t *testing.T) {
	var order []int
	app := &App{}
	for i := 1; i <= 3; i++ {
		app.closers = append(app.closers, func() error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, app.Close())
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, app.Close())
}
