// Package pricing implements the bulk-tier pricing engine. Quote is a pure
// function: identical input always yields an identical breakdown, which the
// cart recompute and order snapshotting both rely on.
package pricing

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/agrikart/internal/domain/product"
)

// ErrInvalidQuantity is returned when a quote is requested for a
// non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

var hundred = decimal.NewFromInt(100)

// Breakdown is the result of pricing a single product at a given quantity.
// Values are exact decimals; rounding to 2 decimal places happens at the
// point of persistence, not here, so line items do not compound rounding
// error.
type Breakdown struct {
	UnitPrice   decimal.Decimal
	BasePrice   decimal.Decimal
	DiscountPct decimal.Decimal
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
	Savings     decimal.Decimal
	TierLabel   string
}

// Quote prices quantity units of p. Tier selection: tiers sorted by MinQty
// descending, first tier with quantity >= MinQty and (MaxQty unbounded or
// quantity <= MaxQty) wins; no match falls back to the base price with zero
// discount.
func Quote(p product.Product, quantity int) (Breakdown, error) {
	if quantity <= 0 {
		return Breakdown{}, ErrInvalidQuantity
	}

	unit := p.UnitPrice
	discount := decimal.Zero
	label := ""

	if tier, ok := selectTier(p.BulkTiers, quantity); ok {
		unit = tier.UnitPrice
		discount = tier.DiscountPct
		label = tier.Label
	}

	qty := decimal.NewFromInt(int64(quantity))
	subtotal := unit.Mul(qty)
	tax := subtotal.Mul(decimal.NewFromInt(int64(p.GSTRate))).Div(hundred)

	return Breakdown{
		UnitPrice:   unit,
		BasePrice:   p.UnitPrice,
		DiscountPct: discount,
		Subtotal:    subtotal,
		TaxAmount:   tax,
		Total:       subtotal.Add(tax),
		Savings:     p.UnitPrice.Sub(unit).Mul(qty),
		TierLabel:   label,
	}, nil
}

func selectTier(tiers []product.BulkTier, quantity int) (product.BulkTier, bool) {
	sorted := make([]product.BulkTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinQty > sorted[j].MinQty
	})

	for _, t := range sorted {
		if quantity >= t.MinQty && (t.MaxQty == 0 || quantity <= t.MaxQty) {
			return t, true
		}
	}
	return product.BulkTier{}, false
}
