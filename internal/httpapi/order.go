package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/agrikart/internal/domain/order"
)

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Customer        order.Customer     `json:"customer"`
	ShippingAddress order.Address      `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	Lines           []orderLineRequest `json:"lines"`
}

type submitPaymentRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

type transitionRequest struct {
	Status order.Status `json:"status"`
	Note   string       `json:"note"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// createOrder checks out. When no lines are given the buyer's current cart
// contents are used.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: "invalid json"})
		return
	}

	lines := make([]order.LineInput, 0, len(req.Lines))
	for _, ln := range req.Lines {
		lines = append(lines, order.LineInput{ProductID: ln.ProductID, Quantity: ln.Quantity})
	}
	if len(lines) == 0 {
		c, err := h.carts.Get(r.Context(), a.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for _, it := range c.Items {
			lines = append(lines, order.LineInput{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}

	req.Customer.BuyerID = a.ID
	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		BuyerID:         a.ID,
		Customer:        req.Customer,
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderOrder(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.orders.ListByBuyer(r.Context(), a.ID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderResponse, len(list))
	for i := range list {
		out[i] = renderOrder(&list[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !a.Staff() && o.BuyerID != a.ID {
		// Do not reveal whether the order exists.
		writeJSON(w, http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: order.ErrNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, renderOrder(o))
}

func (h *Handler) submitPayment(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req submitPaymentRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: "invalid json"})
		return
	}

	o, err := h.orders.SubmitPayment(r.Context(), chi.URLParam(r, "orderID"), a.ID, req.Method, req.Reference)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOrder(o))
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	a, ok := requireStaff(w, r)
	if !ok {
		return
	}

	o, err := h.orders.ConfirmPayment(r.Context(), chi.URLParam(r, "orderID"), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOrder(o))
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := requireStaff(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: "invalid json"})
		return
	}

	o, err := h.orders.TransitionStatus(r.Context(), chi.URLParam(r, "orderID"), a.ID, req.Status, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOrder(o))
}

// cancelOrder serves both buyers cancelling their own orders and staff
// cancelling any order.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: "invalid json"})
		return
	}

	orderID := chi.URLParam(r, "orderID")
	if !a.Staff() {
		o, err := h.orders.Get(r.Context(), orderID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if o.BuyerID != a.ID {
			writeJSON(w, http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: order.ErrNotFound.Error()})
			return
		}
	}

	o, err := h.orders.CancelOrder(r.Context(), orderID, a.ID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOrder(o))
}
