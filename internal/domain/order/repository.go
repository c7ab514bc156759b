package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// Draft is a fully priced placement request: lines already carry snapshotted
// unit prices, modifier values, and computed totals. The store either creates
// a new order from it or appends its lines to the table's existing open order.
type Draft struct {
	OrderID      string
	TableID      string
	CustomerName string
	Notes        string
	Items        []Item
	Subtotal     decimal.Decimal
}

// Repository defines the transactional persistence operations for orders.
// Every mutating call runs in a single transaction: it either fully commits or
// fully rolls back. Mutations on the same open order serialize on a row lock;
// contention surfaces as ErrConflict.
//
// Status changes are conditional writes: the caller supplies the source states
// the transition table permits, and the store fails with InvalidTransitionError
// when the current state is not among them (or NotFoundError when the record
// does not exist). Order transitions bulk-propagate to lines per
// PropagationSources.
type Repository interface {
	// PlaceOrder appends draft.Items to the table's open order, or creates a
	// new pending order when the table has none. Reports whether an order was
	// created.
	PlaceOrder(ctx context.Context, draft Draft) (*Order, bool, error)

	// AddItems appends priced lines to an open order and increments the cached
	// subtotal by delta under the order's row lock.
	AddItems(ctx context.Context, orderID string, items []Item, delta decimal.Decimal) (*Order, error)

	// Get returns an order with all its lines.
	Get(ctx context.Context, id string) (*Order, error)

	// GetItem returns a single line.
	GetItem(ctx context.Context, itemID string) (*Item, error)

	// ListOpenByTable returns the open orders for a table with their lines.
	ListOpenByTable(ctx context.Context, tableID string) ([]Order, error)

	// ListActive returns all non-terminal orders with their lines,
	// oldest-first by creation time.
	ListActive(ctx context.Context) ([]Order, error)

	// UpdateStatus moves an order from one of the given source states to the
	// target state and bulk-propagates to its lines.
	UpdateStatus(ctx context.Context, orderID string, from []Status, to Status) (*Order, error)

	// UpdateItemStatus moves a single line from one of the given source states
	// to the target state.
	UpdateItemStatus(ctx context.Context, itemID string, from []ItemStatus, to ItemStatus) (*Item, error)

	// RequestBill flags an open order as awaiting the bill.
	RequestBill(ctx context.Context, orderID string) (*Order, error)

	// SettlePayment marks an open order paid with the given method, stamps
	// paid_at, and completes its lines.
	SettlePayment(ctx context.Context, orderID string, method string) (*Order, error)

	// TableExists reports whether a table is registered.
	TableExists(ctx context.Context, tableID string) (bool, error)
}
