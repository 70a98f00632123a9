package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/agrikart/internal/domain/product"
)

const (
	productColumns = `id, sku, name, category, unit, hsn_code, unit_price, gst_rate,
		bulk_tiers, stock_total, stock_reserved, min_order_qty, max_order_qty, active`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE active = TRUE ORDER BY category, name`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all active catalog products.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		tiers []byte
	)
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Category, &p.Unit, &p.HSNCode,
		&p.UnitPrice, &p.GSTRate, &tiers,
		&p.StockTotal, &p.StockReserved, &p.MinOrderQty, &p.MaxOrderQty, &p.Active,
	)
	if err != nil {
		return p, err
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &p.BulkTiers); err != nil {
			return p, fmt.Errorf("unmarshaling bulk tiers for %q: %w", p.ID, err)
		}
	}
	return p, nil
}
