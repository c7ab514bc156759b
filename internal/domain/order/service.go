package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/tableflow/internal/broadcast"
	"github.com/xenking/tableflow/internal/domain/catalog"
	"github.com/xenking/tableflow/internal/domain/pricing"
)

// Event names emitted to broadcast topics. See the publish calls below for
// which trigger emits what to whom.
const (
	EventOrderNew      = "order:new"
	EventOrderUpdate   = "order:update"
	EventOrderUpdated  = "order:updated"
	EventOrderNewTask  = "order:new_task"
	EventOrderPaid     = "order:paid"
	EventItemReady     = "item:ready"
	EventItemServed    = "item:served"
	EventBillRequested = "bill:requested"
)

// Publisher delivers an event to all current subscribers of a topic.
// Publishing is best-effort: the engine commits first and notifies after, and
// a notification failure never reverses a committed change.
type Publisher interface {
	Publish(ctx context.Context, topic broadcast.Topic, event string, payload any) error
}

// LineRequest is one requested line of a placement: a menu item, a quantity,
// and the names of the selected modifier options.
type LineRequest struct {
	MenuItemID string
	Quantity   int
	Modifiers  []string
	Notes      string
}

// PlaceOrderRequest holds the input for placing an order at a table.
type PlaceOrderRequest struct {
	TableID      string
	CustomerName string
	Notes        string
	Items        []LineRequest
}

// PlaceOrderResult reports the resulting order and whether it was newly
// created or the placement merged into the table's existing open order.
type PlaceOrderResult struct {
	Order   *Order
	Created bool
}

// Service coordinates the full order lifecycle: it validates input, prices
// lines against the catalog snapshot, applies state machine transitions
// through the transactional store, and then notifies subscribers.
type Service struct {
	menu   catalog.Repository
	orders Repository
	events Publisher
	tracer trace.Tracer
}

// NewService creates a Service with the required collaborators.
func NewService(menu catalog.Repository, orders Repository, events Publisher) *Service {
	return &Service{
		menu:   menu,
		orders: orders,
		events: events,
		tracer: otel.Tracer("tableflow/order"),
	}
}

// PlaceOrder prices the requested lines and either opens a new pending order
// for the table or appends to its existing open order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	if req.TableID == "" {
		return nil, ErrTableRequired
	}
	ok, err := s.orders.TableExists(ctx, req.TableID)
	if err != nil {
		return nil, errors.Wrap(err, "check table")
	}
	if !ok {
		return nil, &NotFoundError{Kind: "table", ID: req.TableID}
	}

	lines, delta, err := s.priceLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	o, created, err := s.orders.PlaceOrder(ctx, Draft{
		OrderID:      uuid.New().String(),
		TableID:      req.TableID,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		Items:        lines,
		Subtotal:     delta,
	})
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}

	if created {
		s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventOrderNew, o)
		s.notify(ctx, broadcast.TableTopic(o.TableID), EventOrderUpdate, o)
	} else {
		s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventOrderUpdated, o)
	}

	return &PlaceOrderResult{Order: o, Created: created}, nil
}

// AddItems appends priced lines to an existing open order. The cached subtotal
// is incremented by the priced delta inside the store transaction.
func (s *Service) AddItems(ctx context.Context, orderID string, items []LineRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "AddItems")
	defer span.End()

	lines, delta, err := s.priceLines(ctx, items)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.AddItems(ctx, orderID, lines, delta)
	if err != nil {
		return nil, errors.Wrap(err, "add items")
	}

	s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventOrderUpdated, o)
	return o, nil
}

// AcceptOrder moves a pending order to accepted and hands it to the kitchen.
func (s *Service) AcceptOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.transition(ctx, orderID, StatusAccepted)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, broadcast.RoleTopic(broadcast.RoleKitchen), EventOrderNewTask, o)
	s.notify(ctx, broadcast.TableTopic(o.TableID), EventOrderUpdate, o)
	return o, nil
}

// RejectOrder cancels a pending order. Only pending orders can be rejected;
// cancelling later states is a separate decision for staff with more context.
func (s *Service) RejectOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.UpdateStatus(ctx, orderID, []Status{StatusPending}, StatusCancelled)
	if err != nil {
		return nil, errors.Wrap(err, "reject order")
	}
	s.notify(ctx, broadcast.TableTopic(o.TableID), EventOrderUpdate, o)
	return o, nil
}

// StartPreparing marks an accepted order as being worked on by the kitchen.
// All of its pending lines move to preparing.
func (s *Service) StartPreparing(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.transition(ctx, orderID, StatusPreparing)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventOrderUpdate, o)
	s.notify(ctx, broadcast.TableTopic(o.TableID), EventOrderUpdate, o)
	return o, nil
}

// MarkReady signals the whole order is ready to serve. All unfinished lines
// move to ready.
func (s *Service) MarkReady(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.transition(ctx, orderID, StatusReady)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventOrderUpdate, o)
	s.notify(ctx, broadcast.TableTopic(o.TableID), EventOrderUpdate, o)
	return o, nil
}

// ServeOrder confirms delivery of a ready order to the table.
func (s *Service) ServeOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.transition(ctx, orderID, StatusServed)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, broadcast.TableTopic(o.TableID), EventOrderUpdate, o)
	return o, nil
}

// UpdateItemStatus moves a single line along the kitchen pipeline. Marking the
// first line of an accepted order as preparing also moves the order (and with
// it the remaining pending lines) to preparing.
func (s *Service) UpdateItemStatus(ctx context.Context, itemID string, to ItemStatus) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "UpdateItemStatus")
	defer span.End()

	if !to.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", to)
	}
	from := ItemTransitionSources(to)
	if len(from) == 0 {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q is initial", to)
	}

	item, err := s.orders.UpdateItemStatus(ctx, itemID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "update item status")
	}

	if to == ItemPreparing {
		// Kitchen picked up the first line: the order follows automatically.
		if o, err := s.orders.UpdateStatus(ctx, item.OrderID, []Status{StatusAccepted}, StatusPreparing); err == nil {
			s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventOrderUpdate, o)
			s.notify(ctx, broadcast.TableTopic(o.TableID), EventOrderUpdate, o)
		} else {
			var itErr *InvalidTransitionError
			if !errors.As(err, &itErr) {
				return nil, errors.Wrap(err, "advance order to preparing")
			}
		}
	}

	if to == ItemReady {
		s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventItemReady, item)
	}
	return item, nil
}

// ServeItem confirms delivery of a single ready line to the table.
func (s *Service) ServeItem(ctx context.Context, itemID string) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "ServeItem")
	defer span.End()

	item, err := s.orders.UpdateItemStatus(ctx, itemID, []ItemStatus{ItemReady}, ItemServed)
	if err != nil {
		return nil, errors.Wrap(err, "serve item")
	}

	o, err := s.orders.Get(ctx, item.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "load parent order")
	}
	s.notify(ctx, broadcast.TableTopic(o.TableID), EventItemServed, item)
	return item, nil
}

// RequestBill flags an open order as awaiting the bill and alerts staff.
func (s *Service) RequestBill(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "RequestBill")
	defer span.End()

	o, err := s.orders.RequestBill(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "request bill")
	}
	s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventBillRequested, o)
	s.notify(ctx, broadcast.RoleTopic(broadcast.RoleAdmin), EventBillRequested, o)
	return o, nil
}

// SettlePayment marks an open order paid. The order becomes terminal and all
// remaining lines complete.
func (s *Service) SettlePayment(ctx context.Context, orderID string, method string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "SettlePayment")
	defer span.End()

	if method == "" {
		return nil, ErrMethodRequired
	}

	o, err := s.orders.SettlePayment(ctx, orderID, method)
	if err != nil {
		return nil, errors.Wrap(err, "settle payment")
	}

	s.notify(ctx, broadcast.RoleTopic(broadcast.RoleWaiter), EventOrderPaid, o)
	s.notify(ctx, broadcast.TableTopic(o.TableID), EventOrderPaid, o)
	return o, nil
}

// GetOrder returns an order with all its lines.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

// GetOpenOrdersForTable returns the open orders for a table.
func (s *Service) GetOpenOrdersForTable(ctx context.Context, tableID string) ([]Order, error) {
	return s.orders.ListOpenByTable(ctx, tableID)
}

// GetBill computes the amount due for the table's open order from the cached
// subtotal plus tax.
func (s *Service) GetBill(ctx context.Context, tableID string) (*Bill, error) {
	ctx, span := s.tracer.Start(ctx, "GetBill")
	defer span.End()

	open, err := s.orders.ListOpenByTable(ctx, tableID)
	if err != nil {
		return nil, errors.Wrap(err, "list open orders")
	}
	if len(open) == 0 {
		return nil, &NotFoundError{Kind: "order", ID: "open order for table " + tableID}
	}

	o := open[0]
	return &Bill{
		OrderID:  o.ID,
		TableID:  o.TableID,
		Subtotal: o.Subtotal,
		Tax:      pricing.Tax(o.Subtotal),
		Total:    pricing.Total(o.Subtotal),
	}, nil
}

// transition applies a status change whose source states come from the
// transition table.
func (s *Service) transition(ctx context.Context, orderID string, to Status) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "transition")
	defer span.End()

	o, err := s.orders.UpdateStatus(ctx, orderID, TransitionSources(to), to)
	if err != nil {
		return nil, errors.Wrapf(err, "transition to %s", to)
	}
	return o, nil
}

// priceLines resolves the catalog snapshot for every requested line and
// computes its total. The whole placement is rejected when any line references
// an unknown or unavailable menu item or an unoffered modifier.
func (s *Service) priceLines(ctx context.Context, reqs []LineRequest) ([]Item, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, decimal.Zero, errors.Wrapf(ErrInvalidQuantity, "menu item %s", r.MenuItemID)
		}
		ids[i] = r.MenuItemID
	}

	fetched, err := s.menu.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "get menu items")
	}
	byID := make(map[string]catalog.MenuItem, len(fetched))
	for _, m := range fetched {
		byID[m.ID] = m
	}

	lines := make([]Item, len(reqs))
	delta := decimal.Zero
	for i, r := range reqs {
		m, ok := byID[r.MenuItemID]
		if !ok {
			return nil, decimal.Zero, &NotFoundError{Kind: "menu item", ID: r.MenuItemID}
		}
		if !m.Available {
			return nil, decimal.Zero, &UnavailableItemError{MenuItemID: m.ID}
		}

		mods := make([]Modifier, len(r.Modifiers))
		adjustments := make([]decimal.Decimal, len(r.Modifiers))
		for j, name := range r.Modifiers {
			opt, ok := m.Option(name)
			if !ok {
				return nil, decimal.Zero, &UnknownModifierError{MenuItemID: m.ID, Modifier: name}
			}
			mods[j] = Modifier{Name: opt.Name, Price: opt.Price}
			adjustments[j] = opt.Price
		}

		total, err := pricing.LineTotal(m.Price, adjustments, r.Quantity)
		if err != nil {
			return nil, decimal.Zero, errors.Wrapf(err, "menu item %s", m.ID)
		}

		lines[i] = Item{
			ID:         uuid.New().String(),
			MenuItemID: m.ID,
			Name:       m.Name,
			Quantity:   r.Quantity,
			UnitPrice:  m.Price,
			LineTotal:  total,
			Modifiers:  mods,
			Notes:      r.Notes,
			Status:     ItemPending,
		}
		delta = delta.Add(total)
	}

	return lines, delta, nil
}

// notify publishes after the transaction committed. Failures are logged and
// swallowed: persistence is the source of truth, broadcasting is best-effort.
func (s *Service) notify(ctx context.Context, topic broadcast.Topic, event string, payload any) {
	if err := s.events.Publish(ctx, topic, event, payload); err != nil {
		zctx.From(ctx).Warn("Broadcast failed",
			zap.String("topic", string(topic)),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
