package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCartCreated             = "CartCreated"
	EventCartCanceled            = "CartCanceled"
	EventLineItemAdded           = "LineItemAdded"
	EventLineItemQuantityChanged = "LineItemQuantityChanged"
	EventLineItemRemoved         = "LineItemRemoved"
)

// Event is the envelope published for every accepted mutation.
type Event struct {
	ID            string    `json:"id"`
	AggregateID   string    `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
	EventType     string    `json:"event_type"`
	Data          any       `json:"data"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher delivers events outside the service. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type CartCreated struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CartCanceled struct {
	CartID     string    `json:"cart_id"`
	UserID     string    `json:"user_id"`
	CanceledAt time.Time `json:"canceled_at"`
}

type LineItemAdded struct {
	CartID     string          `json:"cart_id"`
	LineItemID string          `json:"line_item_id"`
	UserID     string          `json:"user_id"`
	ProductID  string          `json:"product_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	AddedAt    time.Time       `json:"added_at"`
}

type LineItemQuantityChanged struct {
	CartID     string          `json:"cart_id"`
	LineItemID string          `json:"line_item_id"`
	UserID     string          `json:"user_id"`
	ProductID  string          `json:"product_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Delta      int             `json:"delta"`
	Quantity   int             `json:"quantity"`
	ChangedAt  time.Time       `json:"changed_at"`
}

type LineItemRemoved struct {
	CartID     string          `json:"cart_id"`
	LineItemID string          `json:"line_item_id"`
	UserID     string          `json:"user_id"`
	ProductID  string          `json:"product_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	RemovedAt  time.Time       `json:"removed_at"`
}
