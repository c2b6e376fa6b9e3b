package query

import (
	"context"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
	"github.com/example/ec-shopping-cart/internal/readmodel"
)

type Handler struct {
	cartSvc *cart.Service
}

func NewHandler(cartSvc *cart.Service) *Handler {
	return &Handler{cartSvc: cartSvc}
}

// ViewCart returns the totals and listing of the user's active cart.
// It fails with cart.ErrCartNotFound when the user has none.
func (h *Handler) ViewCart(ctx context.Context, q ViewCart) (*ShoppingCartResponse, error) {
	summary, err := h.cartSvc.View(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return &ShoppingCartResponse{ShoppingCart: readmodel.FromSummary(summary)}, nil
}
