package inventory

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrInvalidQuantity is returned when a ledger operation receives a
// non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// InsufficientStockError indicates a reservation asked for more units than
// are currently available.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidAdjustmentError indicates a manual correction would drop the total
// below zero or below the reserved count.
type InvalidAdjustmentError struct {
	ProductID string
	Delta     int
	Total     int
	Reserved  int
}

func (e *InvalidAdjustmentError) Error() string {
	return fmt.Sprintf("invalid stock adjustment for product %s: delta %d with total %d, reserved %d",
		e.ProductID, e.Delta, e.Total, e.Reserved)
}

// StockInvariantError reports a violated ledger invariant
// (0 <= reserved <= total). It is fatal for the operation that detected it
// and must be surfaced for manual audit, never auto-corrected.
type StockInvariantError struct {
	ProductID string
	Total     int
	Reserved  int
}

func (e *StockInvariantError) Error() string {
	return fmt.Sprintf("stock invariant violated for product %s: total %d, reserved %d",
		e.ProductID, e.Total, e.Reserved)
}
