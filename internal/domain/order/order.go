package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root for one dining session at a table. It stays open
// from the first placed item until it is paid or cancelled, and is never
// deleted afterwards.
type Order struct {
	ID              string
	TableID         string
	CustomerName    string
	Status          Status
	Subtotal        decimal.Decimal
	Notes           string
	BillRequested   bool
	BillRequestedAt *time.Time
	PaymentMethod   string
	Items           []Item
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
}

// Open reports whether the order still accepts mutations.
func (o *Order) Open() bool {
	return !o.Status.Terminal()
}

// Item is a single line of an order: one menu item, its quantity, and the
// modifiers selected at placement time. UnitPrice and Modifiers are snapshots;
// later catalog changes never touch an existing line.
type Item struct {
	ID         string
	OrderID    string
	MenuItemID string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
	Modifiers  []Modifier
	Notes      string
	Status     ItemStatus
	CreatedAt  time.Time
}

// Modifier is one selected customization, captured as a value at placement
// time (name plus price adjustment).
type Modifier struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Bill is the amount due for an open order: cached subtotal plus tax.
type Bill struct {
	OrderID  string
	TableID  string
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}
