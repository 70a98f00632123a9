package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type stockChangeRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type stockAdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handler) addStock(w http.ResponseWriter, r *http.Request) {
	a, ok := requireStaff(w, r)
	if !ok {
		return
	}

	var req stockChangeRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: "invalid json"})
		return
	}

	adj, err := h.ledger.Add(r.Context(), chi.URLParam(r, "productID"), req.Quantity, a.ID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAdjustment(*adj))
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	a, ok := requireStaff(w, r)
	if !ok {
		return
	}

	var req stockAdjustRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: "invalid json"})
		return
	}

	adj, err := h.ledger.Adjust(r.Context(), chi.URLParam(r, "productID"), req.Delta, a.ID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAdjustment(*adj))
}

func (h *Handler) damageStock(w http.ResponseWriter, r *http.Request) {
	a, ok := requireStaff(w, r)
	if !ok {
		return
	}

	var req stockChangeRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: "invalid json"})
		return
	}

	adj, err := h.ledger.MarkDamaged(r.Context(), chi.URLParam(r, "productID"), req.Quantity, a.ID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAdjustment(*adj))
}

func (h *Handler) listAdjustments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	adjs, err := h.ledger.Adjustments(r.Context(), chi.URLParam(r, "productID"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAdjustments(adjs))
}
