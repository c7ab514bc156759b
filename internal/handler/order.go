package handler

import (
	"net/http"

	"github.com/xenking/tableflow/internal/domain/order"
)

// placeOrder creates or extends the table's open order.
// POST /api/orders
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		TableID:      req.TableID,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		Items:        toLineRequests(req.Items),
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondJSON(w, r, status, toOrderResponse(result.Order))
}

// addItems appends lines to an existing open order.
// POST /api/orders/{id}/items
func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	var req addItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	o, err := h.orders.AddItems(r.Context(), r.PathValue("id"), toLineRequests(req.Items))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// getOrder returns one order with its lines.
// GET /api/orders/{id}
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// openOrdersForTable returns the table's open orders.
// GET /api/tables/{id}/orders
func (h *Handler) openOrdersForTable(w http.ResponseWriter, r *http.Request) {
	open, err := h.orders.GetOpenOrdersForTable(r.Context(), r.PathValue("id"))
	if err != nil {
		mapError(w, r, err)
		return
	}

	out := make([]orderResponse, len(open))
	for i := range open {
		out[i] = toOrderResponse(&open[i])
	}
	respondJSON(w, r, http.StatusOK, out)
}

// requestBill flags the order as awaiting the bill.
// POST /api/orders/{id}/bill
func (h *Handler) requestBill(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RequestBill(r.Context(), r.PathValue("id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// getBill previews the amount due for the table's open order.
// GET /api/tables/{id}/bill
func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	bill, err := h.orders.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, billResponse{
		OrderID:  bill.OrderID,
		TableID:  bill.TableID,
		Subtotal: bill.Subtotal,
		Tax:      bill.Tax,
		Total:    bill.Total,
	})
}

// listMenu returns the catalog.
// GET /api/menu
func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}

	out := make([]menuItemResponse, len(items))
	for i, m := range items {
		out[i] = toMenuItemResponse(m)
	}
	respondJSON(w, r, http.StatusOK, out)
}
