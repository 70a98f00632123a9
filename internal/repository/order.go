package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/agrikart/internal/domain/order"
)

const (
	orderColumns = `id, number, buyer_id, customer, shipping_address, items,
		subtotal, tax_cgst, tax_sgst, tax_igst, shipping_charges, round_off, grand_total,
		status, payment_status, payment_method, payment_reference,
		payment_submitted_at, payment_confirmed_at, payment_confirmed_by,
		cancel_reason, cancelled_at, delivered_at, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	lockOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	listOrdersByBuyerSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2`

	updateOrderSQL = `UPDATE orders SET
		status = $2, payment_status = $3, payment_method = $4, payment_reference = $5,
		payment_submitted_at = $6, payment_confirmed_at = $7, payment_confirmed_by = $8,
		cancel_reason = $9, cancelled_at = $10, delivered_at = $11, updated_at = $12
		WHERE id = $1`

	insertHistorySQL = `INSERT INTO order_status_history (order_id, status, at, note, actor_id)
		VALUES ($1, $2, $3, $4, $5)`

	listHistorySQL = `SELECT status, at, note, actor_id
		FROM order_status_history WHERE order_id = $1 ORDER BY at, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// immutable checkout snapshot (items, customer, address) is stored as JSONB;
// the status history lives in an insert-only side table.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order together with its initial history entries.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	customer, address, items, err := marshalSnapshot(o)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.Number, o.BuyerID, customer, address, items,
			o.Subtotal, o.Tax.CGST, o.Tax.SGST, o.Tax.IGST,
			o.ShippingCharges, o.RoundOff, o.GrandTotal,
			o.Status, o.PaymentStatus, o.PaymentMethod, o.PaymentReference,
			o.PaymentSubmittedAt, o.PaymentConfirmedAt, o.PaymentConfirmedBy,
			o.CancelReason, o.CancelledAt, o.DeliveredAt, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		for _, h := range o.History {
			if _, err := tx.Exec(ctx, insertHistorySQL, o.ID, h.Status, h.At, h.Note, h.ActorID); err != nil {
				return fmt.Errorf("recording history for %q: %w", o.ID, err)
			}
		}
		return nil
	})
}

// Get returns one order with its full status history.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
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
	if o.History, err = r.listHistory(ctx, r.pool, id); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByBuyer returns a buyer's most recent orders, without histories.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByBuyerSQL, buyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders for buyer %q: %w", buyerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Update loads the order under a row lock, applies fn, and persists the
// mutable lifecycle fields plus any appended history entries in the same
// transaction. fn receives a context carrying that transaction, so ledger
// operations it invokes commit or roll back with the order update.
func (r *OrderRepository) Update(ctx context.Context, id string, fn func(ctx context.Context, o *order.Order) error) (*order.Order, error) {
	var out *order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockOrderSQL, id)
		if err != nil {
			return fmt.Errorf("locking order %q: %w", id, err)
		}
		o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}
		if o.History, err = r.listHistory(ctx, tx, id); err != nil {
			return err
		}
		priorHistory := len(o.History)

		if err := fn(withTx(ctx, tx), &o); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, updateOrderSQL,
			o.ID, o.Status, o.PaymentStatus, o.PaymentMethod, o.PaymentReference,
			o.PaymentSubmittedAt, o.PaymentConfirmedAt, o.PaymentConfirmedBy,
			o.CancelReason, o.CancelledAt, o.DeliveredAt, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("updating order %q: %w", id, err)
		}
		// History is append-only; only entries fn added are inserted.
		for _, h := range o.History[priorHistory:] {
			if _, err := tx.Exec(ctx, insertHistorySQL, o.ID, h.Status, h.At, h.Note, h.ActorID); err != nil {
				return fmt.Errorf("recording history for %q: %w", id, err)
			}
		}
		out = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *OrderRepository) listHistory(ctx context.Context, q querier, orderID string) ([]order.HistoryEntry, error) {
	rows, err := q.Query(ctx, listHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing history for %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.HistoryEntry, error) {
		var h order.HistoryEntry
		err := row.Scan(&h.Status, &h.At, &h.Note, &h.ActorID)
		return h, err
	})
}

func marshalSnapshot(o *order.Order) (customer, address, items []byte, err error) {
	if customer, err = json.Marshal(o.Customer); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling customer: %w", err)
	}
	if address, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling shipping address: %w", err)
	}
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling order items: %w", err)
	}
	return customer, address, items, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		customer []byte
		address  []byte
		items    []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.BuyerID, &customer, &address, &items,
		&o.Subtotal, &o.Tax.CGST, &o.Tax.SGST, &o.Tax.IGST,
		&o.ShippingCharges, &o.RoundOff, &o.GrandTotal,
		&o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PaymentReference,
		&o.PaymentSubmittedAt, &o.PaymentConfirmedAt, &o.PaymentConfirmedBy,
		&o.CancelReason, &o.CancelledAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return o, fmt.Errorf("unmarshaling customer for %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address for %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items for %q: %w", o.ID, err)
	}
	return o, nil
}
