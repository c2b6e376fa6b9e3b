package query

// Re-export read models from readmodel package
import "github.com/example/ec-shopping-cart/internal/readmodel"

type CartItemReadModel = readmodel.CartItemReadModel
type CartReadModel = readmodel.CartReadModel

// ViewCart asks for the aggregated active cart of a user
type ViewCart struct {
	UserID string `json:"userId"`
}

// ShoppingCartResponse is the payload returned for ViewCart
type ShoppingCartResponse struct {
	ShoppingCart CartReadModel `json:"shoppingCart"`
}
