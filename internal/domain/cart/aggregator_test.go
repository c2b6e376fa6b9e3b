package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCart(userID string) *Cart {
	return &Cart{ID: uuid.New(), UserID: userID, Status: StatusInProgress}
}

func lineItem(c *Cart, productID string, price int64, qty int) *LineItem {
	return &LineItem{
		ID:        uuid.New(),
		CartID:    c.ID,
		UserID:    c.UserID,
		ProductID: productID,
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  qty,
		Version:   1,
	}
}

func product(productID string, price int64, qty int) Product {
	return Product{ProductID: productID, UnitPrice: decimal.NewFromInt(price), Quantity: qty}
}

// ============================================
// PlanCart Tests
// ============================================

func TestAggregator_PlanCart(t *testing.T) {
	agg := Aggregator{}
	deletedAt := time.Now()

	tests := []struct {
		name     string
		active   *Cart
		wantOpen bool
	}{
		{"no cart", nil, true},
		{"active cart", activeCart("u1"), false},
		{"canceled cart", &Cart{ID: uuid.New(), UserID: "u1", Status: StatusCanceled}, true},
		{"deleted cart", &Cart{ID: uuid.New(), UserID: "u1", Status: StatusInProgress, DeletedAt: &deletedAt}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, ok := agg.PlanCart("u1", tt.active)
			assert.Equal(t, tt.wantOpen, ok)
			if ok {
				assert.Equal(t, OpCreateCart, op.Kind)
				assert.Equal(t, "u1", op.UserID)
			}
		})
	}
}

// ============================================
// PlanAdd Tests
// ============================================

func TestAggregator_PlanAdd_NewLineItem(t *testing.T) {
	c := activeCart("u1")

	op := Aggregator{}.PlanAdd("u1", c.ID, nil, product("P1", 100, 3))

	assert.Equal(t, OpCreateLineItem, op.Kind)
	assert.Equal(t, c.ID, op.CartID)
	assert.Equal(t, "P1", op.ProductID)
	assert.True(t, op.UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 3, op.Quantity)
	assert.Equal(t, 3, op.Delta)
}

func TestAggregator_PlanAdd_MergesIntoExisting(t *testing.T) {
	c := activeCart("u1")
	existing := lineItem(c, "P1", 100, 4)

	op := Aggregator{}.PlanAdd("u1", c.ID, existing, product("P1", 100, 3))

	assert.Equal(t, OpUpdateLineItem, op.Kind)
	assert.Equal(t, existing.ID, op.LineItem.ID)
	assert.Equal(t, 1, op.LineItem.Version)
	assert.Equal(t, 7, op.Quantity)
	assert.Equal(t, 3, op.Delta)
}

// ============================================
// PlanRemove Tests
// ============================================

func TestAggregator_PlanRemove(t *testing.T) {
	c := activeCart("u1")
	canceled := &Cart{ID: uuid.New(), UserID: "u1", Status: StatusCanceled}
	deletedAt := time.Now()
	deleted := lineItem(c, "P1", 100, 2)
	deleted.DeletedAt = &deletedAt

	tests := []struct {
		name     string
		active   *Cart
		existing *LineItem
		p        Product
		wantErr  error
		wantKind OpKind
		wantQty  int
	}{
		{"no active cart", nil, nil, product("P1", 100, 1), ErrNoActiveCart, "", 0},
		{"canceled cart", canceled, lineItem(canceled, "P1", 100, 2), product("P1", 100, 1), ErrNoActiveCart, "", 0},
		{"product absent", c, nil, product("P1", 100, 1), ErrProductNotInCart, "", 0},
		{"line item deleted", c, deleted, product("P1", 100, 1), ErrProductNotInCart, "", 0},
		{"quantity exceeded", c, lineItem(c, "P1", 100, 2), product("P1", 100, 3), ErrQuantityExceeded, "", 0},
		{"partial removal", c, lineItem(c, "P1", 100, 5), product("P1", 100, 2), nil, OpUpdateLineItem, 3},
		{"exact removal", c, lineItem(c, "P1", 100, 5), product("P1", 100, 5), nil, OpSoftDeleteLineItem, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := Aggregator{}.PlanRemove(tt.active, tt.existing, tt.p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsRejection(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, op.Kind)
			assert.Equal(t, tt.wantQty, op.Quantity)
			assert.Equal(t, -tt.p.Quantity, op.Delta)
			assert.Equal(t, tt.existing.ID, op.LineItem.ID)
		})
	}
}

// ============================================
// PlanCascade Tests
// ============================================

func TestAggregator_PlanCascade(t *testing.T) {
	c := activeCart("u1")

	op, ok := Aggregator{}.PlanCascade(*c, 0)
	require.True(t, ok)
	assert.Equal(t, OpCancelCart, op.Kind)
	assert.Equal(t, c.ID, op.CartID)

	_, ok = Aggregator{}.PlanCascade(*c, 1)
	assert.False(t, ok)

	canceled := *c
	canceled.Status = StatusCanceled
	_, ok = Aggregator{}.PlanCascade(canceled, 0)
	assert.False(t, ok)
}

// ============================================
// Summarize Tests
// ============================================

func TestAggregator_Summarize(t *testing.T) {
	c := activeCart("u1")
	items := []LineItem{*lineItem(c, "P1", 100, 10), *lineItem(c, "P2", 100, 10)}

	s := Aggregator{}.Summarize(*c, items)

	assert.Equal(t, c.ID, s.CartID)
	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.TotalPrice.Equal(decimal.NewFromInt(2000)), "got %s", s.TotalPrice)
	assert.Equal(t, 20, s.TotalQuantity)
	require.Len(t, s.Products, 2)
	assert.Equal(t, "P1", s.Products[0].ProductID)
	assert.Equal(t, 10, s.Products[0].Quantity)
	assert.Equal(t, "P2", s.Products[1].ProductID)
}

func TestAggregator_Summarize_FractionalPrices(t *testing.T) {
	c := activeCart("u1")
	item := *lineItem(c, "P1", 0, 3)
	item.UnitPrice = decimal.RequireFromString("0.10")

	s := Aggregator{}.Summarize(*c, []LineItem{item})

	assert.True(t, s.TotalPrice.Equal(decimal.RequireFromString("0.3")), "got %s", s.TotalPrice)
}

func TestAggregator_Summarize_SkipsDeleted(t *testing.T) {
	c := activeCart("u1")
	deletedAt := time.Now()
	gone := *lineItem(c, "P2", 50, 1)
	gone.DeletedAt = &deletedAt

	s := Aggregator{}.Summarize(*c, []LineItem{*lineItem(c, "P1", 100, 2), gone})

	assert.True(t, s.TotalPrice.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 2, s.TotalQuantity)
	assert.Len(t, s.Products, 1)
}

func TestAggregator_Summarize_Empty(t *testing.T) {
	c := activeCart("u1")

	s := Aggregator{}.Summarize(*c, nil)

	assert.True(t, s.TotalPrice.IsZero())
	assert.Equal(t, 0, s.TotalQuantity)
	assert.Empty(t, s.Products)
}

// ============================================
// Validation Tests
// ============================================

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Product
		wantErr error
	}{
		{"valid", product("P1", 100, 1), nil},
		{"zero price", product("P1", 0, 1), nil},
		{"empty product", product("", 100, 1), ErrInvalidProduct},
		{"blank product", product("   ", 100, 1), ErrInvalidProduct},
		{"zero quantity", product("P1", 100, 0), ErrInvalidQuantity},
		{"negative quantity", product("P1", 100, -2), ErrInvalidQuantity},
		{"negative price", product("P1", -1, 1), ErrInvalidPrice},
		{"four decimal places", Product{ProductID: "P1", UnitPrice: decimal.RequireFromString("10.1234"), Quantity: 1}, nil},
		{"trailing zeros beyond scale", Product{ProductID: "P1", UnitPrice: decimal.RequireFromString("10.120000"), Quantity: 1}, nil},
		{"five decimal places", Product{ProductID: "P1", UnitPrice: decimal.RequireFromString("10.12345"), Quantity: 1}, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidation(err))
			assert.False(t, IsRejection(err))
		})
	}
}

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("user-1"))
	assert.ErrorIs(t, ValidateUserID(""), ErrInvalidUserID)
	assert.ErrorIs(t, ValidateUserID(" \t "), ErrInvalidUserID)
}

func TestMutexLocker(t *testing.T) {
	l := &mutexLocker{}

	unlock, err := l.Lock(context.Background(), "user-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		next, err := l.Lock(context.Background(), "user-2")
		if err == nil {
			next()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first is held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	unlock()
	<-acquired

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "user-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToStatus(t *testing.T) {
	s, err := ToStatus("IN_PROGRESS")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	s, err = ToStatus("CANCELED")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, s)

	_, err = ToStatus("SHIPPED")
	assert.Error(t, err)
}
