package product

import "fmt"

// QuantityOutOfRangeError indicates a requested quantity violates the
// product's minimum or maximum order constraint.
type QuantityOutOfRangeError struct {
	ProductID string
	Quantity  int
	Min       int
	Max       int // 0 means no upper bound
}

func (e *QuantityOutOfRangeError) Error() string {
	if e.Max > 0 && e.Quantity > e.Max {
		return fmt.Sprintf("quantity %d for product %s above maximum order quantity %d", e.Quantity, e.ProductID, e.Max)
	}
	return fmt.Sprintf("quantity %d for product %s below minimum order quantity %d", e.Quantity, e.ProductID, e.Min)
}

// ValidateQuantity checks qty against the product's MOQ and max-order
// constraints. Stock availability is checked separately by the caller.
func (p Product) ValidateQuantity(qty int) error {
	min := p.MinOrderQty
	if min < 1 {
		min = 1
	}
	if qty < min || (p.MaxOrderQty > 0 && qty > p.MaxOrderQty) {
		return &QuantityOutOfRangeError{ProductID: p.ID, Quantity: qty, Min: min, Max: p.MaxOrderQty}
	}
	return nil
}
