// Package order owns the order lifecycle: creation from a cart snapshot,
// the status state machine, payment attestation, and the ledger side
// effects bound to transitions.
package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/agrikart/internal/domain/cart"
	"github.com/xenking/agrikart/internal/domain/inventory"
	"github.com/xenking/agrikart/internal/domain/pricing"
	"github.com/xenking/agrikart/internal/domain/product"
)

// Event types emitted by the order service.
const (
	EventCreated          = "order.created"
	EventPaymentSubmitted = "order.payment_submitted"
	EventPaymentConfirmed = "order.payment_confirmed"
	EventStatusChanged    = "order.status_changed"
	EventCancelled        = "order.cancelled"
)

// EventSink receives order lifecycle notifications. Implementations must
// not block order processing; publishing is fire-and-forget.
type EventSink interface {
	OrderEvent(ctx context.Context, eventType string, o *Order, actorID string)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OrderEvent(context.Context, string, *Order, string) {}

// StockLedger is the slice of the inventory ledger the order lifecycle
// drives. Batch operations are all-or-nothing.
type StockLedger interface {
	ReserveLines(ctx context.Context, lines []inventory.Line, orderID, actorID string) error
	ReleaseLines(ctx context.Context, lines []inventory.Line, orderID, actorID, reason string) error
	DeductLines(ctx context.Context, lines []inventory.Line, orderID, actorID string) error
}

// Config holds seller-side settings that shape order totals.
type Config struct {
	// SellerState is the seller's home state; it decides the GST split.
	SellerState string
	// ShippingCharge is a flat per-order charge added to the grand total.
	ShippingCharge decimal.Decimal
}

// LineInput is one cart line at checkout, quantities only. Prices always
// come from the live catalog, never from the snapshot.
type LineInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	BuyerID         string
	Customer        Customer
	Lines           []LineInput
	ShippingAddress Address
	PaymentMethod   string
}

// Service encapsulates order lifecycle business logic.
type Service struct {
	orders   Repository
	products product.Repository
	carts    cart.Repository
	ledger   StockLedger
	sink     EventSink
	cfg      Config
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
// A nil sink disables event publishing.
func NewService(
	orders Repository,
	products product.Repository,
	carts cart.Repository,
	ledger StockLedger,
	sink EventSink,
	cfg Config,
) *Service {
	if sink == nil {
		sink = NopSink{}
	}
	return &Service{
		orders:   orders,
		products: products,
		carts:    carts,
		ledger:   ledger,
		sink:     sink,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

// ListByBuyer returns a buyer's most recent orders.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.orders.ListByBuyer(ctx, buyerID, limit)
}

// CreateOrder validates every line against the live catalog, recomputes
// authoritative pricing, snapshots product and buyer data, reserves stock
// for all lines atomically, persists the order, and clears the buyer's
// cart. Any validation failure aborts the whole creation with no partial
// reservation.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyItems
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, &ValidationError{Field: "payment_method", Reason: "required"}
	}

	ids := make([]string, len(req.Lines))
	for i, ln := range req.Lines {
		ids[i] = ln.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	now := s.now().UTC()
	id := uuid.New()

	items := make([]Item, 0, len(req.Lines))
	lines := make([]inventory.Line, 0, len(req.Lines))
	subtotal := decimal.Zero
	tax := decimal.Zero
	lineTotalSum := decimal.Zero
	for _, ln := range req.Lines {
		p, ok := byID[ln.ProductID]
		if !ok || !p.Active {
			return nil, product.ErrNotFound
		}
		if err := p.ValidateQuantity(ln.Quantity); err != nil {
			return nil, err
		}
		if avail := p.StockAvailable(); avail < ln.Quantity {
			return nil, &inventory.InsufficientStockError{
				ProductID: p.ID, Requested: ln.Quantity, Available: avail,
			}
		}

		b, err := pricing.Quote(p, ln.Quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "price product %s", p.ID)
		}

		item := Item{
			ProductID: p.ID,
			Product: ProductSnapshot{
				Name:    p.Name,
				Unit:    p.Unit,
				HSNCode: p.HSNCode,
				GSTRate: p.GSTRate,
			},
			Quantity:     ln.Quantity,
			UnitPrice:    b.UnitPrice,
			DiscountPct:  b.DiscountPct,
			TierLabel:    b.TierLabel,
			LineSubtotal: b.Subtotal.Round(2),
			LineTax:      b.TaxAmount.Round(2),
			LineTotal:    b.Total.Round(2),
		}
		items = append(items, item)
		lines = append(lines, inventory.Line{ProductID: p.ID, Quantity: ln.Quantity})
		subtotal = subtotal.Add(item.LineSubtotal)
		tax = tax.Add(item.LineTax)
		lineTotalSum = lineTotalSum.Add(item.LineTotal)
	}

	rawTotal := lineTotalSum.Add(s.cfg.ShippingCharge)
	grandTotal := rawTotal.Round(0)
	roundOff := grandTotal.Sub(rawTotal).Round(2)

	o := &Order{
		ID:              id.String(),
		Number:          NewNumber(id, now),
		BuyerID:         req.BuyerID,
		Customer:        req.Customer,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Subtotal:        subtotal,
		Tax:             splitGST(tax, req.ShippingAddress.State, s.cfg.SellerState),
		ShippingCharges: s.cfg.ShippingCharge.Round(2),
		RoundOff:        roundOff,
		GrandTotal:      grandTotal,
		Status:          StatusPendingPayment,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   req.PaymentMethod,
		History: []HistoryEntry{{
			Status:  StatusPendingPayment,
			At:      now,
			Note:    "order created",
			ActorID: req.BuyerID,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Reserve all lines atomically before the order row exists; the ledger
	// re-checks availability under its lock, so the earlier check is only a
	// friendly fast path.
	if err := s.ledger.ReserveLines(ctx, lines, o.ID, req.BuyerID); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		// Compensate the reservation so failed creation leaves no stock held.
		if relErr := s.ledger.ReleaseLines(ctx, lines, o.ID, req.BuyerID, "order creation failed"); relErr != nil {
			zctx.From(ctx).Error("release after failed order create",
				zap.String("order_id", o.ID), zap.Error(relErr))
		}
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.carts.Delete(ctx, req.BuyerID); err != nil && !errors.Is(err, cart.ErrNotFound) {
		// The order is already placed; a stale cart is an annoyance, not a
		// failure.
		zctx.From(ctx).Warn("clear cart after checkout",
			zap.String("buyer_id", req.BuyerID), zap.Error(err))
	}

	s.sink.OrderEvent(ctx, EventCreated, o, req.BuyerID)
	return o, nil
}

// SubmitPayment records the buyer's claim that an offline payment was
// sent. Allowed only while the order awaits payment and nothing is already
// submitted or confirmed.
func (s *Service) SubmitPayment(ctx context.Context, orderID, buyerID, method, reference string) (*Order, error) {
	o, err := s.orders.Update(ctx, orderID, func(_ context.Context, o *Order) error {
		if o.BuyerID != buyerID {
			return &UnauthorizedError{ActorID: buyerID, Reason: "order belongs to another buyer"}
		}
		if o.Status != StatusPendingPayment ||
			(o.PaymentStatus != PaymentPending && o.PaymentStatus != PaymentFailed) {
			return &InvalidPaymentStateError{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus}
		}

		now := s.now().UTC()
		o.PaymentStatus = PaymentSubmitted
		if method != "" {
			o.PaymentMethod = method
		}
		o.PaymentReference = reference
		o.PaymentSubmittedAt = &now
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.sink.OrderEvent(ctx, EventPaymentSubmitted, o, buyerID)
	return o, nil
}

// ConfirmPayment is the staff attestation that the payment arrived. The
// payment confirmation and the pending_payment -> paid transition are one
// atomic effect: both apply or neither does.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, staffID string) (*Order, error) {
	o, err := s.orders.Update(ctx, orderID, func(_ context.Context, o *Order) error {
		if o.Status != StatusPendingPayment || o.PaymentStatus != PaymentSubmitted {
			return &InvalidPaymentStateError{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus}
		}

		now := s.now().UTC()
		o.PaymentStatus = PaymentConfirmed
		o.PaymentConfirmedAt = &now
		o.PaymentConfirmedBy = staffID
		return s.applyTransition(o, StatusPaid, staffID, "payment confirmed", now)
	})
	if err != nil {
		return nil, err
	}
	s.sink.OrderEvent(ctx, EventPaymentConfirmed, o, staffID)
	return o, nil
}

// TransitionStatus moves an order to an adjacent lifecycle status and runs
// the side effects bound to the target. Moving to paid is rejected here:
// that transition happens only through ConfirmPayment. A cancelled target
// delegates to the cancellation path with note as the reason.
func (s *Service) TransitionStatus(ctx context.Context, orderID, actorID string, target Status, note string) (*Order, error) {
	if !target.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(target)}
	}
	if target == StatusCancelled {
		return s.CancelOrder(ctx, orderID, actorID, note)
	}

	o, err := s.orders.Update(ctx, orderID, func(ctx context.Context, o *Order) error {
		if target == StatusPaid {
			return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: target}
		}
		if !CanTransition(o.Status, target) {
			return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: target}
		}

		now := s.now().UTC()
		if target == StatusAccepted {
			// Acceptance irreversibly commits the reservation. Runs under the
			// order row lock with the update's transaction context, so a
			// concurrent transition cannot double-deduct and a failed order
			// update rolls the deduction back.
			if err := s.ledger.DeductLines(ctx, orderLines(o), o.ID, actorID); err != nil {
				return err
			}
		}
		if target == StatusDelivered {
			o.DeliveredAt = &now
		}
		return s.applyTransition(o, target, actorID, note, now)
	})
	if err != nil {
		return nil, err
	}
	s.sink.OrderEvent(ctx, EventStatusChanged, o, actorID)
	return o, nil
}

// CancelOrder cancels an order and releases its reservation. Cancelling
// after acceptance keeps the source semantics: the deduction already moved
// the units out of both counters, so the release is a recorded no-op on
// physical stock and only Add/Adjust can restore it.
func (s *Service) CancelOrder(ctx context.Context, orderID, actorID, reason string) (*Order, error) {
	o, err := s.orders.Update(ctx, orderID, func(ctx context.Context, o *Order) error {
		if !CanTransition(o.Status, StatusCancelled) {
			return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: StatusCancelled}
		}

		if err := s.ledger.ReleaseLines(ctx, orderLines(o), o.ID, actorID, reason); err != nil {
			return err
		}

		now := s.now().UTC()
		o.CancelReason = reason
		o.CancelledAt = &now
		return s.applyTransition(o, StatusCancelled, actorID, reason, now)
	})
	if err != nil {
		return nil, err
	}
	s.sink.OrderEvent(ctx, EventCancelled, o, actorID)
	return o, nil
}

// applyTransition validates adjacency, sets the new status, and appends
// the immutable history entry. History is append-only: entries are never
// rewritten or removed.
func (s *Service) applyTransition(o *Order, to Status, actorID, note string, at time.Time) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: to}
	}
	o.Status = to
	o.UpdatedAt = at
	o.History = append(o.History, HistoryEntry{
		Status:  to,
		At:      at,
		Note:    note,
		ActorID: actorID,
	})
	return nil
}

func orderLines(o *Order) []inventory.Line {
	lines := make([]inventory.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}
