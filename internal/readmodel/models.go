package readmodel

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
)

// CartItemReadModel represents an item in the cart
type CartItemReadModel struct {
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CartReadModel is the read model for shopping cart
type CartReadModel struct {
	ID            string              `json:"shoppingCartId"`
	UserID        string              `json:"userId"`
	TotalPrice    decimal.Decimal     `json:"totalPrice"`
	TotalQuantity int                 `json:"totalQuantity"`
	Products      []CartItemReadModel `json:"products"`
}

// FromSummary converts the aggregated cart into its read model
func FromSummary(s cart.Summary) CartReadModel {
	return CartReadModel{
		ID:            s.CartID.String(),
		UserID:        s.UserID,
		TotalPrice:    s.TotalPrice,
		TotalQuantity: s.TotalQuantity,
		Products: lo.Map(s.Products, func(p cart.ProductLine, _ int) CartItemReadModel {
			return CartItemReadModel{
				ProductID: p.ProductID,
				Price:     p.UnitPrice,
				Quantity:  p.Quantity,
			}
		}),
	}
}
