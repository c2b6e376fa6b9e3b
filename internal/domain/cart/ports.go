package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Conflicts reported by a Store that enforces the cart invariants itself.
var (
	ErrActiveCartExists = errors.New("active cart already exists for user")
	ErrLineItemExists   = errors.New("line item already exists for product and price")
	ErrStaleLineItem    = errors.New("line item was modified concurrently")
)

// Store is the persistence port used by the Service.
// Lookups only ever match rows with a nil deletion time; Find* return (nil, nil) when nothing matches.
type Store interface {
	FindActiveCart(ctx context.Context, userID string) (*Cart, error)
	// CreateCart opens an IN_PROGRESS cart, or fails with ErrActiveCartExists.
	CreateCart(ctx context.Context, userID string, now time.Time) (Cart, error)
	CancelCart(ctx context.Context, cartID uuid.UUID, now time.Time) error

	FindLineItem(ctx context.Context, cartID uuid.UUID, productID string, unitPrice decimal.Decimal) (*LineItem, error)
	// CreateLineItem fails with ErrLineItemExists when the (cart, product, price) key is taken.
	CreateLineItem(ctx context.Context, item LineItem) (LineItem, error)
	// UpdateLineItemQuantity fails with ErrStaleLineItem when version no longer matches.
	UpdateLineItemQuantity(ctx context.Context, lineItemID uuid.UUID, version, quantity int, now time.Time) error
	SoftDeleteLineItem(ctx context.Context, lineItemID uuid.UUID, version int, now time.Time) error
	ListLineItems(ctx context.Context, cartID uuid.UUID, userID string) ([]LineItem, error)

	// WithinTx runs fn against a Store bound to a single unit of work.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// Locker serializes the read-modify-write sequence of a single user.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// mutexLocker serializes every call of the process regardless of key.
// Use WithLocker to lock per user.
type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) Lock(ctx context.Context, _ string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()

	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}
