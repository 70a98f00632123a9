// Package inventory owns the per-product stock counters. Stock is reserved
// when an order is placed and only deducted from the total when the seller
// accepts the order; the two counters are the system's oversell guard.
package inventory

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Stock holds the two counters for one product.
type Stock struct {
	Total    int
	Reserved int
}

// Available is Total minus Reserved.
func (s Stock) Available() int {
	return s.Total - s.Reserved
}

func (s Stock) valid() bool {
	return s.Reserved >= 0 && s.Reserved <= s.Total
}

// Repository persists stock counters and adjustment records. UpdateStock
// must run fn against the product's counters under an exclusive per-product
// lock and commit the new counters together with the returned adjustment in
// one transaction, so ledger operations are linearizable per product.
// UpdateStockBatch does the same for several products at once: either every
// product is updated or none is.
type Repository interface {
	UpdateStock(ctx context.Context, productID string, fn func(s *Stock) (*Adjustment, error)) (Stock, error)
	UpdateStockBatch(ctx context.Context, productIDs []string, fn func(productID string, s *Stock) (*Adjustment, error)) error
	ListAdjustments(ctx context.Context, productID string, limit int) ([]Adjustment, error)
}

// Ledger exposes the atomic stock operations. All stock arithmetic lives
// here; no other component mutates the counters directly.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a Ledger backed by the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Reserve provisionally commits qty units to orderID. It fails with
// InsufficientStockError when available stock is short and never touches
// the total.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int, orderID, actorID string) (*Adjustment, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return l.apply(ctx, productID, l.reserveFn(productID, qty, orderID, actorID))
}

// Release returns reserved units after a cancellation. The reserved counter
// is floored at zero: releasing more than is reserved records only the
// actually released delta.
func (l *Ledger) Release(ctx context.Context, productID string, qty int, orderID, actorID, reason string) (*Adjustment, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return l.apply(ctx, productID, l.releaseFn(productID, qty, orderID, actorID, reason))
}

// Deduct permanently commits reserved units to a shipment, decrementing
// both counters. Used on the paid -> accepted transition.
func (l *Ledger) Deduct(ctx context.Context, productID string, qty int, orderID, actorID string) (*Adjustment, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return l.apply(ctx, productID, l.deductFn(productID, qty, orderID, actorID))
}

// Add restocks qty units.
func (l *Ledger) Add(ctx context.Context, productID string, qty int, actorID, reason string) (*Adjustment, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return l.apply(ctx, productID, func(s *Stock) (*Adjustment, error) {
		s.Total += qty
		return l.record(productID, qty, KindAdd, "", actorID, reason), nil
	})
}

// Adjust applies an arbitrary correction to the total. It fails when the
// result would be negative or below the reserved count.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int, actorID, reason string) (*Adjustment, error) {
	if delta == 0 {
		return nil, errors.New("adjustment delta must be non-zero")
	}
	return l.apply(ctx, productID, func(s *Stock) (*Adjustment, error) {
		next := s.Total + delta
		if next < 0 || next < s.Reserved {
			return nil, &InvalidAdjustmentError{ProductID: productID, Delta: delta, Total: s.Total, Reserved: s.Reserved}
		}
		s.Total = next
		return l.record(productID, delta, KindAdjust, "", actorID, reason), nil
	})
}

// MarkDamaged removes qty units from the total without touching the
// reserved count. It fails when the total would drop below reserved.
func (l *Ledger) MarkDamaged(ctx context.Context, productID string, qty int, actorID, reason string) (*Adjustment, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return l.apply(ctx, productID, func(s *Stock) (*Adjustment, error) {
		next := s.Total - qty
		if next < s.Reserved {
			return nil, &InvalidAdjustmentError{ProductID: productID, Delta: -qty, Total: s.Total, Reserved: s.Reserved}
		}
		s.Total = next
		return l.record(productID, -qty, KindDamage, "", actorID, reason), nil
	})
}

// ReserveLines reserves every line of an order in one transaction. Any
// shortfall fails the whole batch with no partial reservation.
func (l *Ledger) ReserveLines(ctx context.Context, lines []Line, orderID, actorID string) error {
	qty, ids, err := indexLines(lines)
	if err != nil {
		return err
	}
	return l.repo.UpdateStockBatch(ctx, ids, func(productID string, s *Stock) (*Adjustment, error) {
		adj, err := l.reserveFn(productID, qty[productID], orderID, actorID)(s)
		if err != nil {
			return nil, err
		}
		return adj, l.check(productID, *s)
	})
}

// ReleaseLines releases every line of a cancelled order in one transaction.
func (l *Ledger) ReleaseLines(ctx context.Context, lines []Line, orderID, actorID, reason string) error {
	qty, ids, err := indexLines(lines)
	if err != nil {
		return err
	}
	return l.repo.UpdateStockBatch(ctx, ids, func(productID string, s *Stock) (*Adjustment, error) {
		adj, err := l.releaseFn(productID, qty[productID], orderID, actorID, reason)(s)
		if err != nil {
			return nil, err
		}
		return adj, l.check(productID, *s)
	})
}

// DeductLines commits every line of an accepted order in one transaction.
func (l *Ledger) DeductLines(ctx context.Context, lines []Line, orderID, actorID string) error {
	qty, ids, err := indexLines(lines)
	if err != nil {
		return err
	}
	return l.repo.UpdateStockBatch(ctx, ids, func(productID string, s *Stock) (*Adjustment, error) {
		adj, err := l.deductFn(productID, qty[productID], orderID, actorID)(s)
		if err != nil {
			return nil, err
		}
		return adj, l.check(productID, *s)
	})
}

// Adjustments returns the most recent audit records for a product.
func (l *Ledger) Adjustments(ctx context.Context, productID string, limit int) ([]Adjustment, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.repo.ListAdjustments(ctx, productID, limit)
}

func (l *Ledger) reserveFn(productID string, qty int, orderID, actorID string) func(*Stock) (*Adjustment, error) {
	return func(s *Stock) (*Adjustment, error) {
		if s.Available() < qty {
			return nil, &InsufficientStockError{ProductID: productID, Requested: qty, Available: s.Available()}
		}
		s.Reserved += qty
		return l.record(productID, qty, KindReserve, orderID, actorID, ""), nil
	}
}

func (l *Ledger) releaseFn(productID string, qty int, orderID, actorID, reason string) func(*Stock) (*Adjustment, error) {
	return func(s *Stock) (*Adjustment, error) {
		released := qty
		if released > s.Reserved {
			released = s.Reserved
		}
		s.Reserved -= released
		return l.record(productID, -released, KindRelease, orderID, actorID, reason), nil
	}
}

func (l *Ledger) deductFn(productID string, qty int, orderID, actorID string) func(*Stock) (*Adjustment, error) {
	return func(s *Stock) (*Adjustment, error) {
		if s.Reserved < qty {
			return nil, &StockInvariantError{ProductID: productID, Total: s.Total, Reserved: s.Reserved}
		}
		s.Reserved -= qty
		s.Total -= qty
		return l.record(productID, -qty, KindDeduct, orderID, actorID, ""), nil
	}
}

// apply runs a single-product mutation and verifies the invariant on the
// resulting counters.
func (l *Ledger) apply(ctx context.Context, productID string, fn func(*Stock) (*Adjustment, error)) (*Adjustment, error) {
	var out *Adjustment
	_, err := l.repo.UpdateStock(ctx, productID, func(s *Stock) (*Adjustment, error) {
		adj, err := fn(s)
		if err != nil {
			return nil, err
		}
		if err := l.check(productID, *s); err != nil {
			return nil, err
		}
		out = adj
		return adj, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) check(productID string, s Stock) error {
	if !s.valid() {
		return &StockInvariantError{ProductID: productID, Total: s.Total, Reserved: s.Reserved}
	}
	return nil
}

func (l *Ledger) record(productID string, delta int, kind Kind, orderID, actorID, reason string) *Adjustment {
	return &Adjustment{
		ID:        uuid.New().String(),
		ProductID: productID,
		Delta:     delta,
		Kind:      kind,
		OrderID:   orderID,
		ActorID:   actorID,
		Reason:    reason,
		CreatedAt: l.now().UTC(),
	}
}

func indexLines(lines []Line) (map[string]int, []string, error) {
	if len(lines) == 0 {
		return nil, nil, errors.New("no lines")
	}
	qty := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, nil, ErrInvalidQuantity
		}
		if _, ok := qty[ln.ProductID]; !ok {
			ids = append(ids, ln.ProductID)
		}
		qty[ln.ProductID] += ln.Quantity
	}
	return qty, ids, nil
}
