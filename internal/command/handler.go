package command

import (
	"context"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
)

type Handler struct {
	cartSvc *cart.Service
}

func NewHandler(cartSvc *cart.Service) *Handler {
	return &Handler{cartSvc: cartSvc}
}

// AddProductInCart adds a product to the user's active cart, opening one if needed
func (h *Handler) AddProductInCart(ctx context.Context, cmd AddProductInCart) (Result, error) {
	if err := h.cartSvc.Add(ctx, cmd.UserID, cmd.Product.toProduct()); err != nil {
		return Result{}, err
	}
	return Result{Message: MessageProductAdded}, nil
}

// RemoveProductFromCart removes a quantity of a product from the user's active cart
func (h *Handler) RemoveProductFromCart(ctx context.Context, cmd RemoveProductFromCart) (Result, error) {
	if err := h.cartSvc.Remove(ctx, cmd.UserID, cmd.Product.toProduct()); err != nil {
		return Result{}, err
	}
	return Result{Message: MessageProductRemoved}, nil
}
