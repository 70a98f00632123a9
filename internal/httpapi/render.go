package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/agrikart/internal/domain/inventory"
	"github.com/xenking/agrikart/internal/domain/order"
	"github.com/xenking/agrikart/internal/domain/pricing"
	"github.com/xenking/agrikart/internal/domain/product"
)

// Response bodies are explicit DTOs so the wire format stays stable when
// domain types evolve.

type productResponse struct {
	ID             string             `json:"id"`
	SKU            string             `json:"sku"`
	Name           string             `json:"name"`
	Category       string             `json:"category,omitempty"`
	Unit           string             `json:"unit,omitempty"`
	HSNCode        string             `json:"hsn_code,omitempty"`
	UnitPrice      decimal.Decimal    `json:"unit_price"`
	GSTRate        int                `json:"gst_rate"`
	BulkTiers      []product.BulkTier `json:"bulk_tiers,omitempty"`
	StockAvailable int                `json:"stock_available"`
	MinOrderQty    int                `json:"min_order_qty"`
	MaxOrderQty    int                `json:"max_order_qty,omitempty"`
}

func renderProduct(p product.Product) productResponse {
	return productResponse{
		ID:             p.ID,
		SKU:            p.SKU,
		Name:           p.Name,
		Category:       p.Category,
		Unit:           p.Unit,
		HSNCode:        p.HSNCode,
		UnitPrice:      p.UnitPrice,
		GSTRate:        p.GSTRate,
		BulkTiers:      p.BulkTiers,
		StockAvailable: p.StockAvailable(),
		MinOrderQty:    p.MinOrderQty,
		MaxOrderQty:    p.MaxOrderQty,
	}
}

type quoteResponse struct {
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	BasePrice   decimal.Decimal `json:"base_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Total       decimal.Decimal `json:"total"`
	Savings     decimal.Decimal `json:"savings"`
	TierLabel   string          `json:"tier_label,omitempty"`
}

func renderQuote(productID string, qty int, b pricing.Breakdown) quoteResponse {
	return quoteResponse{
		ProductID:   productID,
		Quantity:    qty,
		UnitPrice:   b.UnitPrice,
		BasePrice:   b.BasePrice,
		DiscountPct: b.DiscountPct,
		Subtotal:    b.Subtotal.Round(2),
		TaxAmount:   b.TaxAmount.Round(2),
		Total:       b.Total.Round(2),
		Savings:     b.Savings.Round(2),
		TierLabel:   b.TierLabel,
	}
}

type orderResponse struct {
	ID              string               `json:"id"`
	Number          string               `json:"number"`
	BuyerID         string               `json:"buyer_id"`
	Customer        order.Customer       `json:"customer"`
	ShippingAddress order.Address        `json:"shipping_address"`
	Items           []order.Item         `json:"items"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	Tax             order.TaxBreakdown   `json:"tax"`
	ShippingCharges decimal.Decimal      `json:"shipping_charges"`
	RoundOff        decimal.Decimal      `json:"round_off"`
	GrandTotal      decimal.Decimal      `json:"grand_total"`
	Status          order.Status         `json:"status"`
	PaymentStatus   order.PaymentStatus  `json:"payment_status"`
	PaymentMethod   string               `json:"payment_method,omitempty"`
	PaymentRef      string               `json:"payment_reference,omitempty"`
	CancelReason    string               `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
	History         []order.HistoryEntry `json:"history,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func renderOrder(o *order.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		Number:          o.Number,
		BuyerID:         o.BuyerID,
		Customer:        o.Customer,
		ShippingAddress: o.ShippingAddress,
		Items:           o.Items,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		ShippingCharges: o.ShippingCharges,
		RoundOff:        o.RoundOff,
		GrandTotal:      o.GrandTotal,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		PaymentRef:      o.PaymentReference,
		CancelReason:    o.CancelReason,
		CancelledAt:     o.CancelledAt,
		DeliveredAt:     o.DeliveredAt,
		History:         o.History,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type adjustmentResponse struct {
	ID        string         `json:"id"`
	ProductID string         `json:"product_id"`
	Delta     int            `json:"delta"`
	Kind      inventory.Kind `json:"kind"`
	OrderID   string         `json:"order_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func renderAdjustment(a inventory.Adjustment) adjustmentResponse {
	return adjustmentResponse{
		ID:        a.ID,
		ProductID: a.ProductID,
		Delta:     a.Delta,
		Kind:      a.Kind,
		OrderID:   a.OrderID,
		ActorID:   a.ActorID,
		Reason:    a.Reason,
		CreatedAt: a.CreatedAt,
	}
}

func renderAdjustments(adjs []inventory.Adjustment) []adjustmentResponse {
	out := make([]adjustmentResponse, len(adjs))
	for i, a := range adjs {
		out[i] = renderAdjustment(a)
	}
	return out
}
