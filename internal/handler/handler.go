// Package handler exposes the coordination engine over HTTP. It owns request
// decoding, response shaping, and the mapping from domain errors to status
// codes; all business rules live in the domain services.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tableflow/internal/domain/catalog"
	"github.com/xenking/tableflow/internal/domain/order"
	"github.com/xenking/tableflow/internal/domain/ticket"
)

// Handler holds the domain services behind the HTTP API.
type Handler struct {
	orders  *order.Service
	tickets *ticket.Service
	menu    catalog.Repository
}

// New constructs a Handler with the required domain dependencies.
func New(orders *order.Service, tickets *ticket.Service, menu catalog.Repository) *Handler {
	return &Handler{
		orders:  orders,
		tickets: tickets,
		menu:    menu,
	}
}

// Register attaches all API routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/items", h.addItems)
	mux.HandleFunc("POST /api/orders/{id}/accept", h.acceptOrder)
	mux.HandleFunc("POST /api/orders/{id}/reject", h.rejectOrder)
	mux.HandleFunc("POST /api/orders/{id}/prepare", h.startPreparing)
	mux.HandleFunc("POST /api/orders/{id}/ready", h.markReady)
	mux.HandleFunc("POST /api/orders/{id}/serve", h.serveOrder)
	mux.HandleFunc("POST /api/orders/{id}/bill", h.requestBill)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.settlePayment)
	mux.HandleFunc("PATCH /api/items/{id}", h.updateItemStatus)
	mux.HandleFunc("POST /api/items/{id}/serve", h.serveItem)
	mux.HandleFunc("GET /api/tables/{id}/orders", h.openOrdersForTable)
	mux.HandleFunc("GET /api/tables/{id}/bill", h.getBill)
	mux.HandleFunc("GET /api/kitchen/tickets", h.kitchenTickets)
	mux.HandleFunc("GET /api/waiter/ready", h.readyItems)
	mux.HandleFunc("GET /api/menu", h.listMenu)
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, errorResponse{Code: status, Message: message})
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
