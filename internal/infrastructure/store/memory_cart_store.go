package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
)

// MemoryCartStore is an in-memory cart.Store. It enforces the same uniqueness
// rules as the PostgreSQL schema but has no rollback.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts []cart.Cart
	items []cart.LineItem // insertion order is the listing order
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{}
}

// FindActiveCart returns the user's IN_PROGRESS cart
func (s *MemoryCartStore) FindActiveCart(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := lo.Find(s.carts, func(c cart.Cart) bool {
		return c.UserID == userID && c.IsActive()
	})
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// CreateCart opens a new IN_PROGRESS cart
func (s *MemoryCartStore) CreateCart(_ context.Context, userID string, now time.Time) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lo.ContainsBy(s.carts, func(c cart.Cart) bool { return c.UserID == userID && c.IsActive() }) {
		return cart.Cart{}, cart.ErrActiveCartExists
	}

	c := cart.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    cart.StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.carts = append(s.carts, c)
	return c, nil
}

// CancelCart moves the cart to CANCELED
func (s *MemoryCartStore) CancelCart(_ context.Context, cartID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(s.carts, func(c cart.Cart) bool { return c.ID == cartID && c.DeletedAt == nil })
	if !ok {
		return ErrNotFound
	}
	s.carts[idx].Status = cart.StatusCanceled
	s.carts[idx].UpdatedAt = now
	return nil
}

// FindLineItem looks up the live line item for (cart, product, price)
func (s *MemoryCartStore) FindLineItem(_ context.Context, cartID uuid.UUID, productID string, unitPrice decimal.Decimal) (*cart.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	li, ok := lo.Find(s.items, func(li cart.LineItem) bool {
		return li.CartID == cartID && li.DeletedAt == nil && li.Matches(productID, unitPrice)
	})
	if !ok {
		return nil, nil
	}
	return &li, nil
}

// CreateLineItem inserts a new line item with version 1
func (s *MemoryCartStore) CreateLineItem(_ context.Context, item cart.LineItem) (cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lo.ContainsBy(s.items, func(li cart.LineItem) bool {
		return li.CartID == item.CartID && li.DeletedAt == nil && li.Matches(item.ProductID, item.UnitPrice)
	}) {
		return cart.LineItem{}, cart.ErrLineItemExists
	}

	item.ID = uuid.New()
	item.Version = 1
	item.DeletedAt = nil
	s.items = append(s.items, item)
	return item, nil
}

// UpdateLineItemQuantity sets the quantity if version still matches
func (s *MemoryCartStore) UpdateLineItemQuantity(_ context.Context, lineItemID uuid.UUID, version, quantity int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.liveItemIndex(lineItemID, version)
	if err != nil {
		return err
	}
	s.items[idx].Quantity = quantity
	s.items[idx].Version++
	s.items[idx].UpdatedAt = now
	return nil
}

// SoftDeleteLineItem marks the line item deleted
func (s *MemoryCartStore) SoftDeleteLineItem(_ context.Context, lineItemID uuid.UUID, version int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.liveItemIndex(lineItemID, version)
	if err != nil {
		return err
	}
	s.items[idx].Version++
	s.items[idx].UpdatedAt = now
	s.items[idx].DeletedAt = &now
	return nil
}

// ListLineItems returns the live line items of a cart
func (s *MemoryCartStore) ListLineItems(_ context.Context, cartID uuid.UUID, userID string) ([]cart.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Filter(s.items, func(li cart.LineItem, _ int) bool {
		return li.CartID == cartID && li.UserID == userID && li.DeletedAt == nil
	}), nil
}

// WithinTx runs fn directly. Writes made before fn fails are kept.
func (s *MemoryCartStore) WithinTx(_ context.Context, fn func(tx cart.Store) error) error {
	return fn(s)
}

func (s *MemoryCartStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryCartStore) liveItemIndex(id uuid.UUID, version int) (int, error) {
	_, idx, ok := lo.FindIndexOf(s.items, func(li cart.LineItem) bool { return li.ID == id && li.DeletedAt == nil })
	if !ok {
		return -1, ErrNotFound
	}
	if s.items[idx].Version != version {
		return -1, cart.ErrStaleLineItem
	}
	return idx, nil
}
