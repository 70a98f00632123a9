package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot freezes the catalog fields an invoice needs, so later
// catalog edits cannot change what was sold.
type ProductSnapshot struct {
	Name    string `json:"name"`
	Unit    string `json:"unit"`
	HSNCode string `json:"hsn_code"`
	GSTRate int    `json:"gst_rate"`
}

// Item is one frozen order line. All monetary fields are rounded to
// 2 decimal places at creation.
type Item struct {
	ProductID    string          `json:"product_id"`
	Product      ProductSnapshot `json:"product"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DiscountPct  decimal.Decimal `json:"discount_pct"`
	TierLabel    string          `json:"tier_label,omitempty"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	LineTax      decimal.Decimal `json:"line_tax"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// TaxBreakdown splits GST per Indian tax rules: intra-state sales split the
// tax evenly into CGST and SGST, inter-state sales carry it all as IGST.
type TaxBreakdown struct {
	CGST decimal.Decimal `json:"cgst"`
	SGST decimal.Decimal `json:"sgst"`
	IGST decimal.Decimal `json:"igst"`
}

// Address is a shipping destination. State drives the GST split.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// Validate checks the fields order creation depends on.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return &ValidationError{Field: "shipping_address.line1", Reason: "required"}
	case strings.TrimSpace(a.City) == "":
		return &ValidationError{Field: "shipping_address.city", Reason: "required"}
	case strings.TrimSpace(a.State) == "":
		return &ValidationError{Field: "shipping_address.state", Reason: "required"}
	case strings.TrimSpace(a.PostalCode) == "":
		return &ValidationError{Field: "shipping_address.postal_code", Reason: "required"}
	}
	return nil
}

// Customer is the buyer profile snapshot taken at checkout.
type Customer struct {
	BuyerID  string `json:"buyer_id"`
	Name     string `json:"name"`
	Business string `json:"business,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	GSTIN    string `json:"gstin,omitempty"`
}

// HistoryEntry is one row of the append-only status log.
type HistoryEntry struct {
	Status  Status    `json:"status"`
	At      time.Time `json:"at"`
	Note    string    `json:"note,omitempty"`
	ActorID string    `json:"actor_id"`
}

// Order is an immutable snapshot of checked-out cart contents plus mutable
// lifecycle state. Orders are never deleted; cancellation and delivery are
// terminal statuses, not row removals.
type Order struct {
	ID     string
	Number string

	BuyerID         string
	Customer        Customer
	ShippingAddress Address

	Items []Item

	Subtotal        decimal.Decimal
	Tax             TaxBreakdown
	ShippingCharges decimal.Decimal
	RoundOff        decimal.Decimal
	GrandTotal      decimal.Decimal

	Status        Status
	PaymentStatus PaymentStatus

	PaymentMethod      string
	PaymentReference   string
	PaymentSubmittedAt *time.Time
	PaymentConfirmedAt *time.Time
	PaymentConfirmedBy string

	CancelReason string
	CancelledAt  *time.Time
	DeliveredAt  *time.Time

	History []HistoryEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalTax is the sum of the GST components.
func (o *Order) TotalTax() decimal.Decimal {
	return o.Tax.CGST.Add(o.Tax.SGST).Add(o.Tax.IGST)
}

// Repository defines persistence for orders. Update must load the order
// under an exclusive per-order lock, apply fn, and persist the result in
// one transaction: concurrent transitions on the same order serialize, and
// the loser observes the post-transition state. The context passed to fn
// is scoped to that transaction; ledger operations invoked with it commit
// or roll back together with the order update.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]Order, error)
	Update(ctx context.Context, id string, fn func(ctx context.Context, o *Order) error) (*Order, error)
}
