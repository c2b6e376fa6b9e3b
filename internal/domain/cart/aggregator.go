package cart

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// OpKind names a single persistence step decided by the Aggregator.
type OpKind string

const (
	OpCreateCart         OpKind = "create_cart"
	OpCancelCart         OpKind = "cancel_cart"
	OpCreateLineItem     OpKind = "create_line_item"
	OpUpdateLineItem     OpKind = "update_line_item"
	OpSoftDeleteLineItem OpKind = "soft_delete_line_item"
)

// Operation is what the Service has to apply to the store.
// LineItem carries the target row for update/soft-delete, Quantity the resulting quantity.
type Operation struct {
	Kind      OpKind
	UserID    string
	CartID    uuid.UUID
	LineItem  LineItem
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
	// Delta is the signed quantity change requested by the caller.
	Delta int
}

// Aggregator holds the cart decision rules. It never touches storage;
// callers feed it the current state and apply the returned operations.
type Aggregator struct{}

// PlanCart decides whether a cart has to be opened before adding a product.
func (Aggregator) PlanCart(userID string, active *Cart) (Operation, bool) {
	if active != nil && active.IsActive() {
		return Operation{}, false
	}
	return Operation{Kind: OpCreateCart, UserID: userID}, true
}

// PlanAdd merges p into the existing line item or creates a new one.
func (Aggregator) PlanAdd(userID string, cartID uuid.UUID, existing *LineItem, p Product) Operation {
	if existing == nil {
		return Operation{
			Kind:      OpCreateLineItem,
			UserID:    userID,
			CartID:    cartID,
			ProductID: p.ProductID,
			UnitPrice: p.UnitPrice,
			Quantity:  p.Quantity,
			Delta:     p.Quantity,
		}
	}

	return Operation{
		Kind:      OpUpdateLineItem,
		UserID:    userID,
		CartID:    cartID,
		LineItem:  *existing,
		ProductID: existing.ProductID,
		UnitPrice: existing.UnitPrice,
		Quantity:  existing.Quantity + p.Quantity,
		Delta:     p.Quantity,
	}
}

// PlanRemove checks the removal preconditions in order and picks between a partial
// decrement and closing the line item. An exact match always closes it.
func (Aggregator) PlanRemove(active *Cart, existing *LineItem, p Product) (Operation, error) {
	if active == nil || !active.IsActive() {
		return Operation{}, ErrNoActiveCart
	}
	if existing == nil || existing.DeletedAt != nil {
		return Operation{}, ErrProductNotInCart
	}
	if p.Quantity > existing.Quantity {
		return Operation{}, ErrQuantityExceeded
	}

	op := Operation{
		UserID:    active.UserID,
		CartID:    active.ID,
		LineItem:  *existing,
		ProductID: existing.ProductID,
		UnitPrice: existing.UnitPrice,
		Delta:     -p.Quantity,
	}

	if p.Quantity == existing.Quantity {
		op.Kind = OpSoftDeleteLineItem
		op.Quantity = 0
		return op, nil
	}

	op.Kind = OpUpdateLineItem
	op.Quantity = existing.Quantity - p.Quantity
	return op, nil
}

// PlanCascade closes a cart that has no line items left.
func (Aggregator) PlanCascade(c Cart, remaining int) (Operation, bool) {
	if remaining > 0 || !c.IsActive() {
		return Operation{}, false
	}
	return Operation{Kind: OpCancelCart, UserID: c.UserID, CartID: c.ID}, true
}

// ProductLine is one entry of a Summary listing.
type ProductLine struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Summary is the aggregated view of an active cart.
type Summary struct {
	CartID        uuid.UUID
	UserID        string
	TotalPrice    decimal.Decimal
	TotalQuantity int
	Products      []ProductLine
}

// Summarize totals the line items in the order the store returned them.
func (Aggregator) Summarize(c Cart, items []LineItem) Summary {
	live := lo.Filter(items, func(li LineItem, _ int) bool {
		return li.DeletedAt == nil
	})

	return Summary{
		CartID: c.ID,
		UserID: c.UserID,
		TotalPrice: lo.Reduce(live, func(acc decimal.Decimal, li LineItem, _ int) decimal.Decimal {
			return acc.Add(li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))))
		}, decimal.Zero),
		TotalQuantity: lo.SumBy(live, func(li LineItem) int {
			return li.Quantity
		}),
		Products: lo.Map(live, func(li LineItem, _ int) ProductLine {
			return ProductLine{
				ProductID: li.ProductID,
				UnitPrice: li.UnitPrice,
				Quantity:  li.Quantity,
			}
		}),
	}
}
