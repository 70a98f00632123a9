// Package httpapi exposes the catalog, cart, order, and inventory
// operations over HTTP. Handlers stay thin: they decode input, resolve
// the acting principal, delegate to the domain services, and map domain
// errors onto status codes.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/agrikart/internal/domain/auth"
	"github.com/xenking/agrikart/internal/domain/cart"
	"github.com/xenking/agrikart/internal/domain/inventory"
	"github.com/xenking/agrikart/internal/domain/order"
	"github.com/xenking/agrikart/internal/domain/product"
	"github.com/xenking/agrikart/pkg/httpmiddleware"
)

// Handler wires domain services to HTTP routes.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	ledger   *inventory.Ledger
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	ledger *inventory.Ledger,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		ledger:   ledger,
	}
}

// Routes registers all API routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/products/{productID}/quote", h.quoteProduct)

	r.Get("/cart", h.getCart)
	r.Post("/cart/items", h.addCartItem)
	r.Put("/cart/items/{productID}", h.updateCartItem)
	r.Delete("/cart/items/{productID}", h.removeCartItem)
	r.Delete("/cart", h.clearCart)

	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}/payment", h.submitPayment)
	r.Post("/orders/{orderID}/cancel", h.cancelOrder)

	// Back-office operations.
	r.Post("/orders/{orderID}/payment/confirm", h.confirmPayment)
	r.Post("/orders/{orderID}/status", h.transitionOrder)
	r.Post("/products/{productID}/stock/add", h.addStock)
	r.Post("/products/{productID}/stock/adjust", h.adjustStock)
	r.Post("/products/{productID}/stock/damage", h.damageStock)
	r.Get("/products/{productID}/adjustments", h.listAdjustments)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

// writeError maps domain errors onto HTTP status codes. Unknown errors are
// logged and reported as 500 without leaking internals.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		transitionErr   *order.InvalidTransitionError
		paymentErr      *order.InvalidPaymentStateError
		unauthorizedErr *order.UnauthorizedError
		validationErr   *order.ValidationError
		quantityErr     *product.QuantityOutOfRangeError
		stockErr        *inventory.InsufficientStockError
		adjustmentErr   *inventory.InvalidAdjustmentError
	)

	var code int
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		code = http.StatusNotFound
	case errors.As(err, &transitionErr), errors.As(err, &paymentErr):
		code = http.StatusConflict
	case errors.As(err, &quantityErr), errors.As(err, &stockErr), errors.As(err, &adjustmentErr):
		code = http.StatusUnprocessableEntity
	case errors.As(err, &unauthorizedErr), errors.Is(err, auth.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.As(err, &validationErr),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, inventory.ErrInvalidQuantity):
		code = http.StatusBadRequest
	default:
		zctx.From(r.Context()).Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    http.StatusInternalServerError,
			Message: "internal server error",
		})
		return
	}

	writeJSON(w, code, errorResponse{Code: code, Message: err.Error()})
}

// actor resolves the authenticated principal. Routes are mounted behind the
// API key middleware, so a missing actor is a wiring bug, not a user error.
func actor(r *http.Request) (auth.Actor, bool) {
	return httpmiddleware.ActorFromContext(r.Context())
}

func requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, ok := actor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Code:    http.StatusUnauthorized,
			Message: "unauthorized",
		})
	}
	return a, ok
}

func requireStaff(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, ok := requireActor(w, r)
	if !ok {
		return a, false
	}
	if !a.Staff() {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Code:    http.StatusForbidden,
			Message: "staff role required",
		})
		return a, false
	}
	return a, true
}
