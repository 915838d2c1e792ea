package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopfront/apiserver/internal/metrics"
	"github.com/shopfront/apiserver/internal/services"
	"github.com/shopfront/apiserver/types"
)

type OrderService interface {
	Checkout(ctx context.Context, identity types.Identity, productID int) (types.Order, error)
	ListOrders(ctx context.Context, identity types.Identity) ([]types.Order, error)
}

// OrderHandler serves checkout and order history.
type OrderHandler struct {
	orders  OrderService
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewOrderHandler(orders OrderService, m *metrics.Metrics, log *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, metrics: m, log: log}
}

// OrderRouter registers checkout and order routes. Both require a session.
func OrderRouter(r chi.Router, handler *OrderHandler) {
	r.With(RequireAuth).Get("/checkout/{productID}", handler.Checkout)
	r.With(RequireAuth).Get("/orders", handler.ListOrders)
}

// Checkout buys one unit of the product and redirects to the order list.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.OrderHandler.Checkout"

	productID, err := parseIDParam(r, "productID", "product")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.orders.Checkout(r.Context(), identityFromContext(r.Context()), productID); err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			h.metrics.CheckoutAttempt("not_found")
		} else {
			h.metrics.CheckoutAttempt("error")
		}
		writeServiceError(w, r, h.log, op, err, "failed to place order")
		return
	}

	h.metrics.CheckoutAttempt("success")
	http.Redirect(w, r, "/orders", http.StatusSeeOther)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.OrderHandler.ListOrders"

	orders, err := h.orders.ListOrders(r.Context(), identityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []types.Order{}
	}
	writeJSON(w, r, http.StatusOK, orders)
}
