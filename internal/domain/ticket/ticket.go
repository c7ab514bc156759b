// Package ticket builds the kitchen and waiter work queues from current order
// state. The projection holds no state of its own: it is recomputed on demand,
// so it can never drift from the store.
package ticket

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/tableflow/internal/domain/order"
)

// Ticket is the kitchen-facing view of one order's outstanding work.
type Ticket struct {
	OrderID   string
	TableID   string
	Status    order.Status
	Notes     string
	Items     []order.Item
	CreatedAt time.Time
}

// ReadyItem is one line awaiting delivery, flattened for the waiter queue.
type ReadyItem struct {
	Item    order.Item
	TableID string
}

// queueable reports whether a line still belongs on the kitchen queue.
func queueable(s order.ItemStatus) bool {
	switch s {
	case order.ItemPending, order.ItemPreparing, order.ItemReady:
		return true
	}
	return false
}

// Build produces one ticket per open order that still has queueable lines,
// oldest order first. Filtering and grouping happen together: an order whose
// lines are all served or terminal produces no ticket at all.
func Build(orders []order.Order) []Ticket {
	tickets := make([]Ticket, 0, len(orders))
	for _, o := range orders {
		if o.Status.Terminal() {
			continue
		}

		var items []order.Item
		for _, it := range o.Items {
			if queueable(it.Status) {
				items = append(items, it)
			}
		}
		if len(items) == 0 {
			continue
		}

		tickets = append(tickets, Ticket{
			OrderID:   o.ID,
			TableID:   o.TableID,
			Status:    o.Status,
			Notes:     o.Notes,
			Items:     items,
			CreatedAt: o.CreatedAt,
		})
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
	return tickets
}

// Ready produces the flat waiter queue: every ready line of every open order,
// oldest line first.
func Ready(orders []order.Order) []ReadyItem {
	var items []ReadyItem
	for _, o := range orders {
		if o.Status.Terminal() {
			continue
		}
		for _, it := range o.Items {
			if it.Status == order.ItemReady {
				items = append(items, ReadyItem{Item: it, TableID: o.TableID})
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Item.CreatedAt.Before(items[j].Item.CreatedAt)
	})
	return items
}

// Service serves the two projections from the order store.
type Service struct {
	orders order.Repository
}

// NewService creates a projection Service reading from the given store.
func NewService(orders order.Repository) *Service {
	return &Service{orders: orders}
}

// KitchenTickets returns the current kitchen queue.
func (s *Service) KitchenTickets(ctx context.Context) ([]Ticket, error) {
	active, err := s.orders.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active orders")
	}
	return Build(active), nil
}

// ReadyItems returns the current waiter ready-to-serve queue.
func (s *Service) ReadyItems(ctx context.Context) ([]ReadyItem, error) {
	active, err := s.orders.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active orders")
	}
	return Ready(active), nil
}
