package api

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/ec-shopping-cart/internal/api/middleware"
)

func NewRouter(handlers *Handlers, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()

	// Cart
	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.ViewCart(w, r)
		default:
			respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/cart/items", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handlers.AddProductInCart(w, r)
		case http.MethodDelete:
			handlers.RemoveProductFromCart(w, r)
		default:
			respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Probes
	mux.HandleFunc("/healthz", handlers.Healthz)
	mux.HandleFunc("/readyz", handlers.Readyz)

	h := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging(log),
		middleware.Recover(log),
		middleware.UserIdentity,
	)
	return otelhttp.NewHandler(h, "cart-api")
}
