package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tableflow/internal/domain/catalog"
	"github.com/xenking/tableflow/internal/domain/order"
	"github.com/xenking/tableflow/internal/domain/ticket"
)

type lineRequest struct {
	MenuItemID string   `json:"menu_item_id"`
	Quantity   int      `json:"quantity"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

type placeOrderRequest struct {
	TableID      string        `json:"table_id"`
	CustomerName string        `json:"customer_name,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Items        []lineRequest `json:"items"`
}

type addItemsRequest struct {
	Items []lineRequest `json:"items"`
}

type updateItemStatusRequest struct {
	Status string `json:"status"`
}

type settlePaymentRequest struct {
	Method string `json:"method"`
}

type modifierResponse struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type itemResponse struct {
	ID         string             `json:"id"`
	OrderID    string             `json:"order_id"`
	MenuItemID string             `json:"menu_item_id"`
	Name       string             `json:"name"`
	Quantity   int                `json:"quantity"`
	UnitPrice  decimal.Decimal    `json:"unit_price"`
	LineTotal  decimal.Decimal    `json:"line_total"`
	Modifiers  []modifierResponse `json:"modifiers,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	Status     string             `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}

type orderResponse struct {
	ID              string          `json:"id"`
	TableID         string          `json:"table_id"`
	CustomerName    string          `json:"customer_name,omitempty"`
	Status          string          `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Notes           string          `json:"notes,omitempty"`
	BillRequested   bool            `json:"bill_requested"`
	BillRequestedAt *time.Time      `json:"bill_requested_at,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	Items           []itemResponse  `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
}

type billResponse struct {
	OrderID  string          `json:"order_id"`
	TableID  string          `json:"table_id"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type ticketResponse struct {
	OrderID   string         `json:"order_id"`
	TableID   string         `json:"table_id"`
	Status    string         `json:"status"`
	Notes     string         `json:"notes,omitempty"`
	Items     []itemResponse `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
}

type readyItemResponse struct {
	TableID string       `json:"table_id"`
	Item    itemResponse `json:"item"`
}

type menuItemResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Price     decimal.Decimal    `json:"price"`
	Category  string             `json:"category"`
	Available bool               `json:"available"`
	Modifiers []modifierResponse `json:"modifiers,omitempty"`
}

func toLineRequests(lines []lineRequest) []order.LineRequest {
	out := make([]order.LineRequest, len(lines))
	for i, l := range lines {
		out[i] = order.LineRequest{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			Modifiers:  l.Modifiers,
			Notes:      l.Notes,
		}
	}
	return out
}

func toItemResponse(it order.Item) itemResponse {
	mods := make([]modifierResponse, len(it.Modifiers))
	for i, m := range it.Modifiers {
		mods[i] = modifierResponse{Name: m.Name, Price: m.Price}
	}
	return itemResponse{
		ID:         it.ID,
		OrderID:    it.OrderID,
		MenuItemID: it.MenuItemID,
		Name:       it.Name,
		Quantity:   it.Quantity,
		UnitPrice:  it.UnitPrice,
		LineTotal:  it.LineTotal,
		Modifiers:  mods,
		Notes:      it.Notes,
		Status:     string(it.Status),
		CreatedAt:  it.CreatedAt,
	}
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]itemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = toItemResponse(it)
	}
	return orderResponse{
		ID:              o.ID,
		TableID:         o.TableID,
		CustomerName:    o.CustomerName,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		Notes:           o.Notes,
		BillRequested:   o.BillRequested,
		BillRequestedAt: o.BillRequestedAt,
		PaymentMethod:   o.PaymentMethod,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		PaidAt:          o.PaidAt,
	}
}

func toTicketResponse(t ticket.Ticket) ticketResponse {
	items := make([]itemResponse, len(t.Items))
	for i, it := range t.Items {
		items[i] = toItemResponse(it)
	}
	return ticketResponse{
		OrderID:   t.OrderID,
		TableID:   t.TableID,
		Status:    string(t.Status),
		Notes:     t.Notes,
		Items:     items,
		CreatedAt: t.CreatedAt,
	}
}

func toMenuItemResponse(m catalog.MenuItem) menuItemResponse {
	mods := make([]modifierResponse, len(m.Modifiers))
	for i, opt := range m.Modifiers {
		mods[i] = modifierResponse{Name: opt.Name, Price: opt.Price}
	}
	return menuItemResponse{
		ID:        m.ID,
		Name:      m.Name,
		Price:     m.Price,
		Category:  m.Category,
		Available: m.Available,
		Modifiers: mods,
	}
}
