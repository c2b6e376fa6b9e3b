package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
	"github.com/example/ec-shopping-cart/internal/infrastructure/store"
)

// Method names used as keys of Calls and Errs
const (
	MethodFindActiveCart         = "FindActiveCart"
	MethodCreateCart             = "CreateCart"
	MethodCancelCart             = "CancelCart"
	MethodFindLineItem           = "FindLineItem"
	MethodCreateLineItem         = "CreateLineItem"
	MethodUpdateLineItemQuantity = "UpdateLineItemQuantity"
	MethodSoftDeleteLineItem     = "SoftDeleteLineItem"
	MethodListLineItems          = "ListLineItems"
	MethodWithinTx               = "WithinTx"
	MethodPing                   = "Ping"
)

// MockCartStore is a cart.Store for testing. State lives in an in-memory store;
// every call is recorded and any method can be made to fail through Errs.
type MockCartStore struct {
	mu    sync.Mutex
	inner *store.MemoryCartStore

	// For tracking calls in tests
	Calls []string
	// Errs makes the named method fail with the given error
	Errs map[string]error
	// BeforeCreateCart runs before CreateCart, e.g. to simulate a concurrent winner
	BeforeCreateCart func(ctx context.Context, userID string)
}

// NewMockCartStore creates a new MockCartStore
func NewMockCartStore() *MockCartStore {
	return &MockCartStore{
		inner: store.NewMemoryCartStore(),
		Calls: make([]string, 0),
		Errs:  make(map[string]error),
	}
}

// Inner exposes the backing store for seeding state
func (m *MockCartStore) Inner() *store.MemoryCartStore {
	return m.inner
}

func (m *MockCartStore) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, method)
	return m.Errs[method]
}

// CallCount returns how many times method was invoked
func (m *MockCartStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// Mutations returns the recorded calls that write state
func (m *MockCartStore) Mutations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, c := range m.Calls {
		switch c {
		case MethodCreateCart, MethodCancelCart, MethodCreateLineItem, MethodUpdateLineItemQuantity, MethodSoftDeleteLineItem:
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls and injected errors
func (m *MockCartStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]string, 0)
	m.Errs = make(map[string]error)
	m.BeforeCreateCart = nil
}

func (m *MockCartStore) FindActiveCart(ctx context.Context, userID string) (*cart.Cart, error) {
	if err := m.record(MethodFindActiveCart); err != nil {
		return nil, err
	}
	return m.inner.FindActiveCart(ctx, userID)
}

func (m *MockCartStore) CreateCart(ctx context.Context, userID string, now time.Time) (cart.Cart, error) {
	if err := m.record(MethodCreateCart); err != nil {
		return cart.Cart{}, err
	}
	if m.BeforeCreateCart != nil {
		m.BeforeCreateCart(ctx, userID)
	}
	return m.inner.CreateCart(ctx, userID, now)
}

func (m *MockCartStore) CancelCart(ctx context.Context, cartID uuid.UUID, now time.Time) error {
	if err := m.record(MethodCancelCart); err != nil {
		return err
	}
	return m.inner.CancelCart(ctx, cartID, now)
}

func (m *MockCartStore) FindLineItem(ctx context.Context, cartID uuid.UUID, productID string, unitPrice decimal.Decimal) (*cart.LineItem, error) {
	if err := m.record(MethodFindLineItem); err != nil {
		return nil, err
	}
	return m.inner.FindLineItem(ctx, cartID, productID, unitPrice)
}

func (m *MockCartStore) CreateLineItem(ctx context.Context, item cart.LineItem) (cart.LineItem, error) {
	if err := m.record(MethodCreateLineItem); err != nil {
		return cart.LineItem{}, err
	}
	return m.inner.CreateLineItem(ctx, item)
}

func (m *MockCartStore) UpdateLineItemQuantity(ctx context.Context, lineItemID uuid.UUID, version, quantity int, now time.Time) error {
	if err := m.record(MethodUpdateLineItemQuantity); err != nil {
		return err
	}
	return m.inner.UpdateLineItemQuantity(ctx, lineItemID, version, quantity, now)
}

func (m *MockCartStore) SoftDeleteLineItem(ctx context.Context, lineItemID uuid.UUID, version int, now time.Time) error {
	if err := m.record(MethodSoftDeleteLineItem); err != nil {
		return err
	}
	return m.inner.SoftDeleteLineItem(ctx, lineItemID, version, now)
}

func (m *MockCartStore) ListLineItems(ctx context.Context, cartID uuid.UUID, userID string) ([]cart.LineItem, error) {
	if err := m.record(MethodListLineItems); err != nil {
		return nil, err
	}
	return m.inner.ListLineItems(ctx, cartID, userID)
}

func (m *MockCartStore) WithinTx(ctx context.Context, fn func(tx cart.Store) error) error {
	if err := m.record(MethodWithinTx); err != nil {
		return err
	}
	return fn(m)
}

func (m *MockCartStore) Ping(context.Context) error {
	return m.record(MethodPing)
}
