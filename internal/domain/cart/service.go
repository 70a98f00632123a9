// Package cart implements the per-buyer staging area. Every mutation
// validates the requested quantity against the live product record before
// touching cart state and reprices all lines afterwards.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/agrikart/internal/domain/inventory"
	"github.com/xenking/agrikart/internal/domain/pricing"
	"github.com/xenking/agrikart/internal/domain/product"
)

// Service orchestrates cart mutations and recomputation.
type Service struct {
	carts    Repository
	products product.Repository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products, now: time.Now}
}

// Get returns the buyer's cart with freshly recomputed totals. A buyer
// without a cart gets an empty one; carts are created lazily on first add.
func (s *Service) Get(ctx context.Context, buyerID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, buyerID)
	if errors.Is(err, ErrNotFound) {
		return s.empty(buyerID), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if err := s.recompute(ctx, c); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// AddItem stages qty units of a product. Adding a product already present
// aggregates quantities rather than creating a duplicate line; the combined
// quantity must satisfy the product's constraints and current stock.
func (s *Service) AddItem(ctx context.Context, buyerID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	c, err := s.carts.Get(ctx, buyerID)
	if errors.Is(err, ErrNotFound) {
		c = s.empty(buyerID)
	} else if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	total := qty
	if existing := findItem(c, productID); existing != nil {
		total += existing.Quantity
	}
	if err := s.validate(ctx, productID, total); err != nil {
		return nil, err
	}

	if existing := findItem(c, productID); existing != nil {
		existing.Quantity = total
	} else {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty})
	}
	return s.commit(ctx, c)
}

// UpdateItem replaces the staged quantity for a product.
func (s *Service) UpdateItem(ctx context.Context, buyerID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	c, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	item := findItem(c, productID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	if err := s.validate(ctx, productID, qty); err != nil {
		return nil, err
	}

	item.Quantity = qty
	return s.commit(ctx, c)
}

// RemoveItem drops a product from the cart.
func (s *Service) RemoveItem(ctx context.Context, buyerID, productID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	kept := c.Items[:0]
	found := false
	for _, it := range c.Items {
		if it.ProductID == productID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return nil, ErrItemNotFound
	}
	c.Items = kept
	return s.commit(ctx, c)
}

// Clear removes the buyer's cart entirely. Clearing an absent cart is a
// no-op.
func (s *Service) Clear(ctx context.Context, buyerID string) error {
	if err := s.carts.Delete(ctx, buyerID); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// validate checks qty against the live product configuration and stock.
// It runs before any cart mutation so an invalid request leaves the cart
// untouched.
func (s *Service) validate(ctx context.Context, productID string, qty int) error {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return product.ErrNotFound
	}
	if err := p.ValidateQuantity(qty); err != nil {
		return err
	}
	if avail := p.StockAvailable(); avail < qty {
		return &inventory.InsufficientStockError{ProductID: productID, Requested: qty, Available: avail}
	}
	return nil
}

// recompute re-reads live products and reruns the pricing engine per line.
// Lines whose product disappeared or was retired are dropped.
func (s *Service) recompute(ctx context.Context, c *Cart) error {
	if len(c.Items) == 0 {
		s.zeroTotals(c)
		return nil
	}

	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	kept := c.Items[:0]
	subtotal := decimal.Zero
	tax := decimal.Zero
	count := 0
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok || !p.Active {
			continue
		}
		b, err := pricing.Quote(p, it.Quantity)
		if err != nil {
			return errors.Wrapf(err, "price product %s", it.ProductID)
		}
		it.UnitPrice = b.UnitPrice
		kept = append(kept, it)
		subtotal = subtotal.Add(b.Subtotal)
		tax = tax.Add(b.TaxAmount)
		count += it.Quantity
	}

	c.Items = kept
	c.Subtotal = subtotal.Round(2)
	c.EstimatedTax = tax.Round(2)
	c.EstimatedTotal = subtotal.Add(tax).Round(2)
	c.ItemCount = count
	return nil
}

func (s *Service) commit(ctx context.Context, c *Cart) (*Cart, error) {
	if err := s.recompute(ctx, c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

func (s *Service) empty(buyerID string) *Cart {
	c := &Cart{BuyerID: buyerID, UpdatedAt: s.now().UTC()}
	s.zeroTotals(c)
	return c
}

func (s *Service) zeroTotals(c *Cart) {
	c.Subtotal, c.EstimatedTax, c.EstimatedTotal = decimal.Zero, decimal.Zero, decimal.Zero
	c.ItemCount = 0
}

func findItem(c *Cart, productID string) *Item {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}
