package inventory

import "time"

// Kind classifies a stock adjustment.
type Kind string

const (
	KindReserve Kind = "reserve"
	KindRelease Kind = "release"
	KindDeduct  Kind = "deduct"
	KindAdd     Kind = "add"
	KindAdjust  Kind = "adjust"
	KindDamage  Kind = "damage"
)

// Adjustment is an append-only audit record. Every ledger mutation produces
// exactly one adjustment; records are never updated or deleted. This is the
// accountability mechanism for stock discrepancies.
type Adjustment struct {
	ID        string
	ProductID string
	Delta     int
	Kind      Kind
	OrderID   string // empty for manual operations
	ActorID   string
	Reason    string
	CreatedAt time.Time
}

// Line pairs a product with a quantity for batch ledger operations.
type Line struct {
	ProductID string
	Quantity  int
}
