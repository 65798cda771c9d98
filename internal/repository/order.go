package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/furnicart/internal/domain/cart"
	"github.com/xenking/furnicart/internal/domain/order"
)

const (
	orderColumns = `id, user_id, order_number, status, items, shipping_address,
		payment, pricing, coupon, status_history, tracking,
		delivered_at, cancelled_at, cancellation_reason, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	// FOR UPDATE serializes concurrent status changes per order so the
	// append-only history never loses an entry to a concurrent writer.
	getOrderForUpdateSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	updateOrderSQL = `UPDATE orders SET
		status = $2, payment = $3, status_history = $4, tracking = $5,
		delivered_at = $6, cancelled_at = $7, cancellation_reason = $8, updated_at = $9
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Nested
// order records (items, addresses, payment, pricing, history) are stored as
// JSONB; queryable fields get their own columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. When the order references a coupon, the
// coupon's usage counter is incremented in the same transaction via a
// conditional update: either both the redemption and the order commit, or
// neither does, so usage counts can never drift from persisted orders.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.Coupon != nil {
		if err := redeemCoupon(ctx, tx, o.Coupon.Code); err != nil {
			return err
		}
	}

	blobs, err := marshalOrder(o)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.OrderNumber, string(o.Status),
		blobs.items, blobs.address, blobs.payment, blobs.pricing,
		blobs.coupon, blobs.history, blobs.tracking,
		o.DeliveredAt, o.CancelledAt, o.CancellationReason,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

// GetByID returns a single order by id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns a user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders with an optional status filter and pagination, plus
// the total match count.
func (r *OrderRepository) List(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	where := ""
	args := []any{}
	if filter.Status != "" {
		where = " WHERE status = $1"
		args = append(args, string(filter.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	query := "SELECT " + orderColumns + " FROM orders" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return out, total, nil
}

// Mutate loads the order under a row lock, applies fn, and persists the
// result in one transaction. Errors from fn (illegal transition, not the
// owner) roll the whole thing back.
func (r *OrderRepository) Mutate(ctx context.Context, id string, fn func(*order.Order) error) (*order.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin mutate order: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, getOrderForUpdateSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("locking order %q: %w", id, err)
	}

	if err := fn(&o); err != nil {
		return nil, err
	}

	blobs, err := marshalOrder(&o)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), blobs.payment, blobs.history, blobs.tracking,
		o.DeliveredAt, o.CancelledAt, o.CancellationReason, o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit mutate order: %w", err)
	}
	return &o, nil
}

// orderBlobs holds the JSONB column values of one order row.
type orderBlobs struct {
	items    []byte
	address  []byte
	payment  []byte
	pricing  []byte
	coupon   []byte // nil when no coupon applied
	history  []byte
	tracking []byte // nil when no tracking attached
}

func marshalOrder(o *order.Order) (orderBlobs, error) {
	var (
		b   orderBlobs
		err error
	)
	marshal := func(dst *[]byte, v any, what string) {
		if err != nil {
			return
		}
		var data []byte
		if data, err = json.Marshal(v); err != nil {
			err = fmt.Errorf("marshaling order %s: %w", what, err)
			return
		}
		*dst = data
	}

	marshal(&b.items, o.Items, "items")
	marshal(&b.address, o.ShippingAddress, "shipping address")
	marshal(&b.payment, o.Payment, "payment")
	marshal(&b.pricing, o.Pricing, "pricing")
	marshal(&b.history, o.History, "history")
	if o.Coupon != nil {
		marshal(&b.coupon, o.Coupon, "coupon")
	}
	if o.Tracking != nil {
		marshal(&b.tracking, o.Tracking, "tracking")
	}
	return b, err
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
		b      orderBlobs
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &status,
		&b.items, &b.address, &b.payment, &b.pricing,
		&b.coupon, &b.history, &b.tracking,
		&o.DeliveredAt, &o.CancelledAt, &o.CancellationReason,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)

	unmarshal := func(data []byte, v any, what string) {
		if err != nil || data == nil {
			return
		}
		if uerr := json.Unmarshal(data, v); uerr != nil {
			err = fmt.Errorf("unmarshaling order %s: %w", what, uerr)
		}
	}

	o.Items = []cart.Line{}
	unmarshal(b.items, &o.Items, "items")
	unmarshal(b.address, &o.ShippingAddress, "shipping address")
	unmarshal(b.payment, &o.Payment, "payment")
	unmarshal(b.pricing, &o.Pricing, "pricing")
	unmarshal(b.history, &o.History, "history")
	if b.coupon != nil {
		o.Coupon = &order.AppliedCoupon{}
		unmarshal(b.coupon, o.Coupon, "coupon")
	}
	if b.tracking != nil {
		o.Tracking = &order.TrackingInfo{}
		unmarshal(b.tracking, o.Tracking, "tracking")
	}
	return o, err
}
