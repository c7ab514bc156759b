package handler

import (
	"context"
	"net/http"

	"github.com/xenking/tableflow/internal/domain/order"
)

// acceptOrder moves a pending order to accepted.
// POST /api/orders/{id}/accept
func (h *Handler) acceptOrder(w http.ResponseWriter, r *http.Request) {
	h.orderTransition(w, r, h.orders.AcceptOrder)
}

// rejectOrder cancels a pending order.
// POST /api/orders/{id}/reject
func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	h.orderTransition(w, r, h.orders.RejectOrder)
}

// startPreparing marks the whole order as being cooked.
// POST /api/orders/{id}/prepare
func (h *Handler) startPreparing(w http.ResponseWriter, r *http.Request) {
	h.orderTransition(w, r, h.orders.StartPreparing)
}

// markReady signals the whole order is ready to serve.
// POST /api/orders/{id}/ready
func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	h.orderTransition(w, r, h.orders.MarkReady)
}

// serveOrder confirms delivery to the table.
// POST /api/orders/{id}/serve
func (h *Handler) serveOrder(w http.ResponseWriter, r *http.Request) {
	h.orderTransition(w, r, h.orders.ServeOrder)
}

func (h *Handler) orderTransition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, orderID string) (*order.Order, error),
) {
	o, err := op(r.Context(), r.PathValue("id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// updateItemStatus moves one line along the kitchen pipeline.
// PATCH /api/items/{id}
func (h *Handler) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	var req updateItemStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	item, err := h.orders.UpdateItemStatus(r.Context(), r.PathValue("id"), order.ItemStatus(req.Status))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toItemResponse(*item))
}

// serveItem confirms delivery of one ready line.
// POST /api/items/{id}/serve
func (h *Handler) serveItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.orders.ServeItem(r.Context(), r.PathValue("id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toItemResponse(*item))
}

// settlePayment marks the order paid.
// POST /api/orders/{id}/payment
func (h *Handler) settlePayment(w http.ResponseWriter, r *http.Request) {
	var req settlePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	o, err := h.orders.SettlePayment(r.Context(), r.PathValue("id"), req.Method)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// kitchenTickets returns the kitchen work queue.
// GET /api/kitchen/tickets
func (h *Handler) kitchenTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.KitchenTickets(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}

	out := make([]ticketResponse, len(tickets))
	for i, t := range tickets {
		out[i] = toTicketResponse(t)
	}
	respondJSON(w, r, http.StatusOK, out)
}

// readyItems returns the waiter ready-to-serve queue.
// GET /api/waiter/ready
func (h *Handler) readyItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.tickets.ReadyItems(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}

	out := make([]readyItemResponse, len(items))
	for i, ri := range items {
		out[i] = readyItemResponse{TableID: ri.TableID, Item: toItemResponse(ri.Item)}
	}
	respondJSON(w, r, http.StatusOK, out)
}
