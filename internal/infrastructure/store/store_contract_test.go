package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
)

// runCartStoreContract checks the behaviour every cart.Store must share.
// newStore must return an empty store.
func runCartStoreContract(t *testing.T, newStore func(t *testing.T) cart.Store) {
	t.Run("create and find active cart", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := gofakeit.UUID()

		found, err := s.FindActiveCart(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, found)

		created, err := s.CreateCart(ctx, userID, now())
		require.NoError(t, err)
		assert.Equal(t, cart.StatusInProgress, created.Status)

		found, err = s.FindActiveCart(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("second active cart is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := gofakeit.UUID()

		_, err := s.CreateCart(ctx, userID, now())
		require.NoError(t, err)

		_, err = s.CreateCart(ctx, userID, now())
		assert.ErrorIs(t, err, cart.ErrActiveCartExists)
	})

	t.Run("canceled cart frees the user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := gofakeit.UUID()

		first, err := s.CreateCart(ctx, userID, now())
		require.NoError(t, err)
		require.NoError(t, s.CancelCart(ctx, first.ID, now()))

		found, err := s.FindActiveCart(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, found)

		second, err := s.CreateCart(ctx, userID, now())
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("line item lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := mustCart(t, s)
		item := fakeLineItem(c)

		created, err := s.CreateLineItem(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, 1, created.Version)
		assert.NotEqual(t, uuid.Nil, created.ID)

		found, err := s.FindLineItem(ctx, c.ID, item.ProductID, item.UnitPrice)
		require.NoError(t, err)
		require.NotNil(t, found)
		assertLineItem(t, created, *found)

		require.NoError(t, s.UpdateLineItemQuantity(ctx, created.ID, 1, item.Quantity+4, now()))
		found, err = s.FindLineItem(ctx, c.ID, item.ProductID, item.UnitPrice)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, item.Quantity+4, found.Quantity)
		assert.Equal(t, 2, found.Version)

		require.NoError(t, s.SoftDeleteLineItem(ctx, created.ID, 2, now()))
		found, err = s.FindLineItem(ctx, c.ID, item.ProductID, item.UnitPrice)
		require.NoError(t, err)
		assert.Nil(t, found)

		items, err := s.ListLineItems(ctx, c.ID, c.UserID)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("price is part of the key", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := mustCart(t, s)

		item := fakeLineItem(c)
		item.UnitPrice = decimal.RequireFromString("10.50")
		_, err := s.CreateLineItem(ctx, item)
		require.NoError(t, err)

		found, err := s.FindLineItem(ctx, c.ID, item.ProductID, decimal.RequireFromString("10.5"))
		require.NoError(t, err)
		assert.NotNil(t, found)

		found, err = s.FindLineItem(ctx, c.ID, item.ProductID, decimal.RequireFromString("11"))
		require.NoError(t, err)
		assert.Nil(t, found)

		other := item
		other.UnitPrice = decimal.RequireFromString("11")
		_, err = s.CreateLineItem(ctx, other)
		require.NoError(t, err)

		_, err = s.CreateLineItem(ctx, item)
		assert.ErrorIs(t, err, cart.ErrLineItemExists)
	})

	t.Run("price at full scale round trips", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := mustCart(t, s)

		item := fakeLineItem(c)
		item.UnitPrice = decimal.RequireFromString("10.1234")
		created, err := s.CreateLineItem(ctx, item)
		require.NoError(t, err)

		found, err := s.FindLineItem(ctx, c.ID, item.ProductID, decimal.RequireFromString("10.1234"))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
		assert.True(t, found.UnitPrice.Equal(item.UnitPrice))

		require.NoError(t, s.UpdateLineItemQuantity(ctx, found.ID, found.Version, found.Quantity+1, now()))

		_, err = s.CreateLineItem(ctx, item)
		assert.ErrorIs(t, err, cart.ErrLineItemExists)
	})

	t.Run("quantity beyond 32 bits", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := mustCart(t, s)

		created, err := s.CreateLineItem(ctx, fakeLineItem(c))
		require.NoError(t, err)

		const large = 1<<31 + 5
		require.NoError(t, s.UpdateLineItemQuantity(ctx, created.ID, created.Version, large, now()))

		found, err := s.FindLineItem(ctx, c.ID, created.ProductID, created.UnitPrice)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, large, found.Quantity)
	})

	t.Run("soft deleted key can be reused", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := mustCart(t, s)
		item := fakeLineItem(c)

		created, err := s.CreateLineItem(ctx, item)
		require.NoError(t, err)
		require.NoError(t, s.SoftDeleteLineItem(ctx, created.ID, created.Version, now()))

		again, err := s.CreateLineItem(ctx, item)
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, again.ID)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := mustCart(t, s)

		created, err := s.CreateLineItem(ctx, fakeLineItem(c))
		require.NoError(t, err)
		require.NoError(t, s.UpdateLineItemQuantity(ctx, created.ID, 1, 7, now()))

		err = s.UpdateLineItemQuantity(ctx, created.ID, 1, 9, now())
		assert.ErrorIs(t, err, cart.ErrStaleLineItem)

		err = s.SoftDeleteLineItem(ctx, created.ID, 1, now())
		assert.ErrorIs(t, err, cart.ErrStaleLineItem)
	})

	t.Run("list keeps insertion order and scopes by user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := mustCart(t, s)

		var want []cart.LineItem
		for i := 0; i < 3; i++ {
			item := fakeLineItem(c)
			item.CreatedAt = now().Add(time.Duration(i) * time.Second)
			created, err := s.CreateLineItem(ctx, item)
			require.NoError(t, err)
			want = append(want, created)
		}

		items, err := s.ListLineItems(ctx, c.ID, c.UserID)
		require.NoError(t, err)
		require.Len(t, items, 3)
		for i := range want {
			assertLineItem(t, want[i], items[i])
		}

		items, err = s.ListLineItems(ctx, c.ID, gofakeit.UUID())
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(context.Background()))
	})
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func mustCart(t *testing.T, s cart.Store) cart.Cart {
	t.Helper()
	c, err := s.CreateCart(context.Background(), gofakeit.UUID(), now())
	require.NoError(t, err)
	return c
}

func fakeLineItem(c cart.Cart) cart.LineItem {
	ts := now()
	return cart.LineItem{
		CartID:    c.ID,
		UserID:    c.UserID,
		ProductID: gofakeit.UUID(),
		UnitPrice: decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
		Quantity:  gofakeit.Number(1, 10),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func assertLineItem(t *testing.T, expected, actual cart.LineItem) {
	t.Helper()

	opts := cmp.Options{
		cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) }),
		cmpopts.IgnoreFields(cart.LineItem{}, "CreatedAt", "UpdatedAt", "DeletedAt"),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
