package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/ec-shopping-cart/internal/api/middleware"
	"github.com/example/ec-shopping-cart/internal/command"
	"github.com/example/ec-shopping-cart/internal/domain/cart"
	"github.com/example/ec-shopping-cart/internal/query"
)

// maxBodyBytes bounds the size of a command body
const maxBodyBytes = 1 << 20

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	ready        func(ctx context.Context) error
	log          *slog.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, ready func(ctx context.Context) error, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		ready:        ready,
		log:          log,
	}
}

// Cart Handlers

func (h *Handlers) AddProductInCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddProductInCart
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.UserID = resolveUserID(r, cmd.UserID)

	res, err := h.cmdHandler.AddProductInCart(r.Context(), cmd)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) RemoveProductFromCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.RemoveProductFromCart
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.UserID = resolveUserID(r, cmd.UserID)

	res, err := h.cmdHandler.RemoveProductFromCart(r.Context(), cmd)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) ViewCart(w http.ResponseWriter, r *http.Request) {
	q := query.ViewCart{UserID: resolveUserID(r, r.URL.Query().Get("userId"))}

	resp, err := h.queryHandler.ViewCart(r.Context(), q)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Probes

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.log.WarnContext(r.Context(), "readiness check failed", slog.Any("err", err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// respondErr maps domain errors to HTTP statuses. Internal errors are logged
// and never shown to the caller.
func (h *Handlers) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrCartNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case cart.IsValidation(err), cart.IsRejection(err):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled):
		respondError(w, "request canceled", http.StatusRequestTimeout)
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.Any("err", err))
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// resolveUserID prefers the id given in the request itself and falls back to X-User-ID
func resolveUserID(r *http.Request, given string) string {
	if userID := strings.TrimSpace(given); userID != "" {
		return userID
	}
	return middleware.GetUserID(r.Context())
}
