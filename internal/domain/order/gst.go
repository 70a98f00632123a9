package order

import (
	"strings"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// splitGST distributes the total tax amount between the GST components.
// Shipping within the seller's home state splits evenly into CGST and SGST
// (SGST takes the odd paisa so the halves always sum exactly); anything
// else is inter-state and goes fully to IGST.
func splitGST(tax decimal.Decimal, shippingState, sellerState string) TaxBreakdown {
	if sameState(shippingState, sellerState) {
		cgst := tax.Div(two).Round(2)
		return TaxBreakdown{
			CGST: cgst,
			SGST: tax.Sub(cgst),
			IGST: decimal.Zero,
		}
	}
	return TaxBreakdown{CGST: decimal.Zero, SGST: decimal.Zero, IGST: tax}
}

func sameState(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
