package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a buyer has no cart yet.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when updating or removing a product that
	// is not in the cart.
	ErrItemNotFound = errors.New("item not in cart")
)

// Item is one staged line. UnitPrice is a display snapshot only; order
// creation always reprices from live product data.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Cart is a buyer's staging area. The totals are cached previews
// recomputed from live product data on every mutation; they are never the
// source of truth for checkout.
type Cart struct {
	BuyerID        string          `json:"buyer_id"`
	Items          []Item          `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	EstimatedTax   decimal.Decimal `json:"estimated_tax"`
	EstimatedTotal decimal.Decimal `json:"estimated_total"`
	ItemCount      int             `json:"item_count"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Repository persists carts keyed by buyer.
type Repository interface {
	Get(ctx context.Context, buyerID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, buyerID string) error
}
