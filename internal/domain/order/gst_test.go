package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitGST_IntraState(t *testing.T) {
	tb := splitGST(decimal.RequireFromString("81"), "Maharashtra", "Maharashtra")

	assert.True(t, decimal.RequireFromString("40.50").Equal(tb.CGST))
	assert.True(t, decimal.RequireFromString("40.50").Equal(tb.SGST))
	assert.True(t, decimal.Zero.Equal(tb.IGST))
}

func TestSplitGST_IntraState_OddPaisa(t *testing.T) {
	tax := decimal.RequireFromString("10.01")
	tb := splitGST(tax, "maharashtra ", "Maharashtra")

	// Halves must sum back exactly; SGST carries the odd paisa.
	assert.True(t, tb.CGST.Add(tb.SGST).Equal(tax))
	assert.True(t, decimal.Zero.Equal(tb.IGST))
}

func TestSplitGST_InterState(t *testing.T) {
	tax := decimal.RequireFromString("72")
	tb := splitGST(tax, "Karnataka", "Maharashtra")

	assert.True(t, decimal.Zero.Equal(tb.CGST))
	assert.True(t, decimal.Zero.Equal(tb.SGST))
	assert.True(t, tax.Equal(tb.IGST))
}
