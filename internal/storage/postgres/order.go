package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tableflow/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// mutating method runs in one transaction; concurrent placements for the same
// table serialize on the open-order row lock and the partial unique index.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, table_id, customer_name, status, subtotal, notes,
	bill_requested, bill_requested_at, payment_method, created_at, updated_at, paid_at`

const itemColumns = `id, order_id, menu_item_id, name, quantity, unit_price,
	line_total, modifiers, notes, status, created_at`

// PlaceOrder locates the table's open order under a row lock and appends the
// draft lines to it, or creates a new pending order when none exists. A create
// that loses the race on the partial unique index reports ErrConflict.
func (r *OrderRepository) PlaceOrder(ctx context.Context, draft order.Draft) (*order.Order, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+`
		FROM orders
		WHERE table_id = $1 AND status NOT IN ('paid', 'cancelled')
		FOR UPDATE`, draft.TableID)

	o, err := scanOrder(row)
	created := false
	switch {
	case err == nil:
		// Append to the existing open order under its row lock.
		row = tx.QueryRow(ctx, `UPDATE orders
			SET subtotal = subtotal + $2, updated_at = now()
			WHERE id = $1
			RETURNING `+orderColumns, o.ID, draft.Subtotal)
		if o, err = scanOrder(row); err != nil {
			return nil, false, fmt.Errorf("increment subtotal: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		created = true
		row = tx.QueryRow(ctx, `INSERT INTO orders (id, table_id, customer_name, notes, status, subtotal)
			VALUES ($1, $2, $3, $4, 'pending', $5)
			RETURNING `+orderColumns,
			draft.OrderID, draft.TableID, draft.CustomerName, draft.Notes, draft.Subtotal)
		if o, err = scanOrder(row); err != nil {
			return nil, false, translateConflict(err, "create order")
		}
	default:
		return nil, false, fmt.Errorf("lock open order: %w", err)
	}

	if err := insertItems(ctx, tx, o.ID, draft.Items); err != nil {
		return nil, false, err
	}
	if o.Items, err = selectItems(ctx, tx, o.ID); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, translateConflict(err, "commit placement")
	}
	return o, created, nil
}

// AddItems appends lines to an open order, incrementing the cached subtotal
// atomically under the order's row lock.
func (r *OrderRepository) AddItems(ctx context.Context, orderID string, items []order.Item, delta decimal.Decimal) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `UPDATE orders
		SET subtotal = subtotal + $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('paid', 'cancelled')
		RETURNING `+orderColumns, orderID, delta)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, classifyClosed(ctx, tx, orderID)
		}
		return nil, fmt.Errorf("increment subtotal: %w", err)
	}

	if err := insertItems(ctx, tx, orderID, items); err != nil {
		return nil, err
	}
	if o.Items, err = selectItems(ctx, tx, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translateConflict(err, "commit append")
	}
	return o, nil
}

// UpdateStatus performs the conditional status write and bulk-propagates the
// change to the order's lines per the domain propagation rules.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, from []order.Status, to order.Status) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `UPDATE orders
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($2)
		RETURNING `+orderColumns, orderID, statusStrings(from), string(to))

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, classifyTransition(ctx, tx, orderID, string(to))
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	if target := order.PropagatedItemStatus(to); target != "" {
		sources := order.PropagationSources(target)
		_, err = tx.Exec(ctx, `UPDATE order_items
			SET status = $3
			WHERE order_id = $1 AND status = ANY($2)`,
			orderID, itemStatusStrings(sources), string(target))
		if err != nil {
			return nil, fmt.Errorf("propagate item status: %w", err)
		}
	}

	if o.Items, err = selectItems(ctx, tx, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translateConflict(err, "commit transition")
	}
	return o, nil
}

// UpdateItemStatus performs the conditional status write for a single line.
func (r *OrderRepository) UpdateItemStatus(ctx context.Context, itemID string, from []order.ItemStatus, to order.ItemStatus) (*order.Item, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `UPDATE order_items
		SET status = $3
		WHERE id = $1 AND status = ANY($2)
		RETURNING `+itemColumns, itemID, itemStatusStrings(from), string(to))

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var current string
			err = tx.QueryRow(ctx, `SELECT status FROM order_items WHERE id = $1`, itemID).Scan(&current)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &order.NotFoundError{Kind: "order item", ID: itemID}
			}
			if err != nil {
				return nil, fmt.Errorf("classify item transition: %w", err)
			}
			return nil, &order.InvalidTransitionError{Kind: "order item", ID: itemID, From: current, To: string(to)}
		}
		return nil, fmt.Errorf("update item status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translateConflict(err, "commit item transition")
	}
	return item, nil
}

// RequestBill flags an open order as awaiting the bill. Paid and cancelled
// orders are rejected without touching the flag.
func (r *OrderRepository) RequestBill(ctx context.Context, orderID string) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `UPDATE orders
		SET bill_requested = TRUE, bill_requested_at = now(), updated_at = now()
		WHERE id = $1 AND status NOT IN ('paid', 'cancelled')
		RETURNING `+orderColumns, orderID)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, classifyClosed(ctx, tx, orderID)
		}
		return nil, fmt.Errorf("request bill: %w", err)
	}

	if o.Items, err = selectItems(ctx, tx, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translateConflict(err, "commit bill request")
	}
	return o, nil
}

// SettlePayment marks an open order paid and completes its remaining lines.
func (r *OrderRepository) SettlePayment(ctx context.Context, orderID string, method string) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `UPDATE orders
		SET status = 'paid', payment_method = $2, paid_at = now(), updated_at = now()
		WHERE id = $1 AND status NOT IN ('paid', 'cancelled')
		RETURNING `+orderColumns, orderID, method)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, classifyClosed(ctx, tx, orderID)
		}
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	sources := order.PropagationSources(order.ItemCompleted)
	_, err = tx.Exec(ctx, `UPDATE order_items
		SET status = 'completed'
		WHERE order_id = $1 AND status = ANY($2)`, orderID, itemStatusStrings(sources))
	if err != nil {
		return nil, fmt.Errorf("complete items: %w", err)
	}

	if o.Items, err = selectItems(ctx, tx, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translateConflict(err, "commit settlement")
	}
	return o, nil
}

// Get returns an order with all its lines.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{Kind: "order", ID: id}
		}
		return nil, fmt.Errorf("get order %q: %w", id, err)
	}

	if o.Items, err = selectItems(ctx, r.pool, id); err != nil {
		return nil, err
	}
	return o, nil
}

// GetItem returns a single line.
func (r *OrderRepository) GetItem(ctx context.Context, itemID string) (*order.Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = $1`, itemID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{Kind: "order item", ID: itemID}
		}
		return nil, fmt.Errorf("get order item %q: %w", itemID, err)
	}
	return item, nil
}

// ListOpenByTable returns the open orders for a table with their lines.
func (r *OrderRepository) ListOpenByTable(ctx context.Context, tableID string) ([]order.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE table_id = $1 AND status NOT IN ('paid', 'cancelled')
		ORDER BY created_at`, tableID)
}

// ListActive returns all non-terminal orders with their lines, oldest first.
func (r *OrderRepository) ListActive(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status NOT IN ('paid', 'cancelled')
		ORDER BY created_at`)
}

// TableExists reports whether a table is registered.
func (r *OrderRepository) TableExists(ctx context.Context, tableID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, tableID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %q: %w", tableID, err)
	}
	return exists, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []order.Order
		index  = make(map[string]int)
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	itemRows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at`, ids)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, *item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	return orders, nil
}

// querier covers both pool and transaction query surfaces.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []order.Item) error {
	for _, item := range items {
		mods, err := json.Marshal(item.Modifiers)
		if err != nil {
			return fmt.Errorf("marshal modifiers: %w", err)
		}
		_, err = tx.Exec(ctx, `INSERT INTO order_items
			(id, order_id, menu_item_id, name, quantity, unit_price, line_total, modifiers, notes, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			item.ID, orderID, item.MenuItemID, item.Name, item.Quantity,
			item.UnitPrice, item.LineTotal, mods, item.Notes, string(item.Status))
		if err != nil {
			return fmt.Errorf("insert order item %q: %w", item.ID, err)
		}
	}
	return nil
}

func selectItems(ctx context.Context, q querier, orderID string) ([]order.Item, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM order_items
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.TableID, &o.CustomerName, &status, &o.Subtotal,
		&o.Notes, &o.BillRequested, &o.BillRequestedAt, &o.PaymentMethod,
		&o.CreatedAt, &o.UpdatedAt, &o.PaidAt)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	return &o, nil
}

func scanItem(row pgx.Row) (*order.Item, error) {
	var (
		item   order.Item
		status string
		mods   []byte
	)
	err := row.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name,
		&item.Quantity, &item.UnitPrice, &item.LineTotal, &mods,
		&item.Notes, &status, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mods, &item.Modifiers); err != nil {
		return nil, fmt.Errorf("unmarshal modifiers: %w", err)
	}
	item.Status = order.ItemStatus(status)
	return &item, nil
}

// classifyClosed turns a zero-row conditional write into the precise domain
// error for the order's actual state.
func classifyClosed(ctx context.Context, tx pgx.Tx, orderID string) error {
	var current string
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return &order.NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return fmt.Errorf("classify order state: %w", err)
	}
	if order.Status(current) == order.StatusPaid {
		return order.ErrAlreadyPaid
	}
	return order.ErrOrderClosed
}

// classifyTransition distinguishes a missing order from an illegal transition.
func classifyTransition(ctx context.Context, tx pgx.Tx, orderID, to string) error {
	var current string
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return &order.NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return fmt.Errorf("classify order transition: %w", err)
	}
	return &order.InvalidTransitionError{Kind: "order", ID: orderID, From: current, To: to}
}

// translateConflict maps unique violations on the open-order index and lock
// timeouts to ErrConflict so the caller knows a retry is safe.
func translateConflict(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" && pgErr.ConstraintName == "uq_orders_open_per_table" {
			return errors.Wrap(order.ErrConflict, op)
		}
		if pgErr.Code == "55P03" {
			return errors.Wrap(order.ErrConflict, op)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func statusStrings(statuses []order.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func itemStatusStrings(statuses []order.ItemStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
