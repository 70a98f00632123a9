package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for bulk purchase.
// Stock counters are mutated exclusively through the inventory ledger;
// nothing else writes StockTotal or StockReserved.
type Product struct {
	ID            string
	SKU           string
	Name          string
	Category      string
	Unit          string // sale unit, e.g. "50kg bag", "1L bottle"
	HSNCode       string
	UnitPrice     decimal.Decimal // base price before any tier discount
	GSTRate       int             // percent: 0, 5, 12, 18 or 28
	BulkTiers     []BulkTier
	StockTotal    int
	StockReserved int
	MinOrderQty   int
	MaxOrderQty   int // 0 means no upper bound
	Active        bool
}

// BulkTier maps a quantity range to a discounted unit price. Tiers are
// stored as a JSONB document on the product row.
type BulkTier struct {
	MinQty      int             `json:"min_qty"`
	MaxQty      int             `json:"max_qty,omitempty"` // 0 means unbounded
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Label       string          `json:"label,omitempty"`
}

// StockAvailable is the quantity offerable to new orders.
func (p Product) StockAvailable() int {
	return p.StockTotal - p.StockReserved
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
