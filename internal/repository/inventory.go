package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/agrikart/internal/domain/inventory"
	"github.com/xenking/agrikart/internal/domain/product"
)

const (
	lockStockSQL = `SELECT stock_total, stock_reserved
		FROM products WHERE id = $1 FOR UPDATE`

	updateStockSQL = `UPDATE products
		SET stock_total = $2, stock_reserved = $3, updated_at = NOW()
		WHERE id = $1`

	insertAdjustmentSQL = `INSERT INTO inventory_adjustments
		(id, product_id, delta, kind, order_id, actor_id, reason, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`

	listAdjustmentsSQL = `SELECT id, product_id, delta, kind, COALESCE(order_id, ''), actor_id, reason, created_at
		FROM inventory_adjustments
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
)

var _ inventory.Repository = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Repository backed by PostgreSQL.
// Counter updates run inside a transaction holding a SELECT ... FOR UPDATE
// row lock, so concurrent ledger operations on one product serialize. When
// the context already carries a transaction (an order update holding the
// order row lock), the counters join it and commit or roll back with it.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// UpdateStock runs fn against a product's counters under its row lock and
// commits the new counters together with the adjustment record.
func (r *InventoryRepository) UpdateStock(ctx context.Context, productID string, fn func(s *inventory.Stock) (*inventory.Adjustment, error)) (inventory.Stock, error) {
	if tx, ok := txFromContext(ctx); ok {
		return r.applyOne(ctx, tx, productID, fn)
	}

	var out inventory.Stock
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := r.applyOne(ctx, tx, productID, fn)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return inventory.Stock{}, err
	}
	return out, nil
}

// UpdateStockBatch updates several products in one transaction. Rows are
// locked in sorted ID order so concurrent batches cannot deadlock; any
// per-product failure rolls back the whole batch.
func (r *InventoryRepository) UpdateStockBatch(ctx context.Context, productIDs []string, fn func(productID string, s *inventory.Stock) (*inventory.Adjustment, error)) error {
	ids := append([]string(nil), productIDs...)
	sort.Strings(ids)

	apply := func(tx pgx.Tx) error {
		for _, id := range ids {
			if _, err := r.applyOne(ctx, tx, id, func(s *inventory.Stock) (*inventory.Adjustment, error) {
				return fn(id, s)
			}); err != nil {
				return err
			}
		}
		return nil
	}

	if tx, ok := txFromContext(ctx); ok {
		return apply(tx)
	}
	return pgx.BeginFunc(ctx, r.pool, apply)
}

// ListAdjustments returns the most recent audit records for a product.
func (r *InventoryRepository) ListAdjustments(ctx context.Context, productID string, limit int) ([]inventory.Adjustment, error) {
	rows, err := r.pool.Query(ctx, listAdjustmentsSQL, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing adjustments for %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Adjustment, error) {
		var a inventory.Adjustment
		err := row.Scan(&a.ID, &a.ProductID, &a.Delta, &a.Kind, &a.OrderID, &a.ActorID, &a.Reason, &a.CreatedAt)
		return a, err
	})
}

func (r *InventoryRepository) applyOne(ctx context.Context, tx pgx.Tx, productID string, fn func(s *inventory.Stock) (*inventory.Adjustment, error)) (inventory.Stock, error) {
	var s inventory.Stock
	err := tx.QueryRow(ctx, lockStockSQL, productID).Scan(&s.Total, &s.Reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.Stock{}, product.ErrNotFound
		}
		return inventory.Stock{}, fmt.Errorf("locking stock for %q: %w", productID, err)
	}

	adj, err := fn(&s)
	if err != nil {
		return inventory.Stock{}, err
	}

	if _, err := tx.Exec(ctx, updateStockSQL, productID, s.Total, s.Reserved); err != nil {
		return inventory.Stock{}, fmt.Errorf("updating stock for %q: %w", productID, err)
	}
	if adj != nil {
		if _, err := tx.Exec(ctx, insertAdjustmentSQL,
			adj.ID, adj.ProductID, adj.Delta, adj.Kind, adj.OrderID, adj.ActorID, adj.Reason, adj.CreatedAt,
		); err != nil {
			return inventory.Stock{}, fmt.Errorf("recording adjustment for %q: %w", productID, err)
		}
	}
	return s, nil
}
