package command

import (
	"github.com/shopspring/decimal"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
)

// ProductPayload is the product part of a cart mutation
type ProductPayload struct {
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (p ProductPayload) toProduct() cart.Product {
	return cart.Product{ProductID: p.ProductID, UnitPrice: p.Price, Quantity: p.Quantity}
}

// Cart Commands
type AddProductInCart struct {
	UserID  string         `json:"userId"`
	Product ProductPayload `json:"product"`
}

type RemoveProductFromCart struct {
	UserID  string         `json:"userId"`
	Product ProductPayload `json:"product"`
}

// Result acknowledges an accepted command
type Result struct {
	Message string `json:"message"`
}

const (
	MessageProductAdded   = "Added product in shopping cart"
	MessageProductRemoved = "Removed product from the shopping cart"
)
