package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/agrikart/internal/domain/cart"
	"github.com/xenking/agrikart/internal/domain/inventory"
	"github.com/xenking/agrikart/internal/domain/product"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	mu        sync.Mutex
	byID      map[string]*Order
	createErr error
	wrapCtx   func(context.Context) context.Context
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: make(map[string]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByBuyer(_ context.Context, buyerID string, _ int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if o.BuyerID == buyerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

// Update mirrors the Postgres repository: load under lock, apply fn with
// an update-scoped context, persist only on success.
func (m *mockOrderRepo) Update(ctx context.Context, id string, fn func(context.Context, *Order) error) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.wrapCtx != nil {
		ctx = m.wrapCtx(ctx)
	}
	cp := *stored
	cp.History = append([]HistoryEntry(nil), stored.History...)
	if err := fn(ctx, &cp); err != nil {
		return nil, err
	}
	m.byID[id] = &cp
	out := cp
	return &out, nil
}

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockCartRepo struct {
	cleared []string
}

func (m *mockCartRepo) Get(context.Context, string) (*cart.Cart, error) {
	return nil, cart.ErrNotFound
}
func (m *mockCartRepo) Save(context.Context, *cart.Cart) error { return nil }
func (m *mockCartRepo) Delete(_ context.Context, buyerID string) error {
	m.cleared = append(m.cleared, buyerID)
	return nil
}

// fakeLedger applies the real two-counter arithmetic so lifecycle tests
// can assert stock outcomes.
type fakeLedger struct {
	mu         sync.Mutex
	stocks     map[string]inventory.Stock
	reserveErr error
	deductErr  error
	releases   int
	deducts    int
	deductCtx  context.Context
}

func (f *fakeLedger) ReserveLines(_ context.Context, lines []inventory.Line, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return f.reserveErr
	}
	for _, ln := range lines {
		s := f.stocks[ln.ProductID]
		if s.Available() < ln.Quantity {
			return &inventory.InsufficientStockError{ProductID: ln.ProductID, Requested: ln.Quantity, Available: s.Available()}
		}
	}
	for _, ln := range lines {
		s := f.stocks[ln.ProductID]
		s.Reserved += ln.Quantity
		f.stocks[ln.ProductID] = s
	}
	return nil
}

func (f *fakeLedger) ReleaseLines(_ context.Context, lines []inventory.Line, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	for _, ln := range lines {
		s := f.stocks[ln.ProductID]
		released := ln.Quantity
		if released > s.Reserved {
			released = s.Reserved
		}
		s.Reserved -= released
		f.stocks[ln.ProductID] = s
	}
	return nil
}

func (f *fakeLedger) DeductLines(ctx context.Context, lines []inventory.Line, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deductCtx = ctx
	if f.deductErr != nil {
		return f.deductErr
	}
	f.deducts++
	for _, ln := range lines {
		s := f.stocks[ln.ProductID]
		s.Reserved -= ln.Quantity
		s.Total -= ln.Quantity
		f.stocks[ln.ProductID] = s
	}
	return nil
}

func (f *fakeLedger) stock(id string) inventory.Stock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stocks[id]
}

// --- Helpers ---

type fixture struct {
	svc    *Service
	orders *mockOrderRepo
	carts  *mockCartRepo
	ledger *fakeLedger
}

func newFixture(products ...*product.Product) *fixture {
	byID := make(map[string]*product.Product, len(products))
	stocks := make(map[string]inventory.Stock, len(products))
	for _, p := range products {
		byID[p.ID] = p
		stocks[p.ID] = inventory.Stock{Total: p.StockTotal, Reserved: p.StockReserved}
	}
	f := &fixture{
		orders: newMockOrderRepo(),
		carts:  &mockCartRepo{},
		ledger: &fakeLedger{stocks: stocks},
	}
	f.svc = NewService(
		f.orders,
		&mockProductRepo{byID: byID},
		f.carts,
		f.ledger,
		nil,
		Config{SellerState: "Maharashtra", ShippingCharge: decimal.Zero},
	)
	return f
}

func ureaBag() *product.Product {
	return &product.Product{
		ID:          "p-urea",
		Name:        "Urea 46% N",
		Unit:        "50kg bag",
		HSNCode:     "31021000",
		UnitPrice:   decimal.RequireFromString("100"),
		GSTRate:     18,
		StockTotal:  10,
		MinOrderQty: 1,
		Active:      true,
		BulkTiers: []product.BulkTier{
			{MinQty: 5, UnitPrice: decimal.RequireFromString("90"), DiscountPct: decimal.RequireFromString("10"), Label: "5+ bags"},
		},
	}
}

func checkoutReq(qty int) CreateOrderRequest {
	return CreateOrderRequest{
		BuyerID:  "b1",
		Customer: Customer{BuyerID: "b1", Name: "Ravi Traders"},
		Lines:    []LineInput{{ProductID: "p-urea", Quantity: qty}},
		ShippingAddress: Address{
			Line1:      "Market Road 12",
			City:       "Nashik",
			State:      "Maharashtra",
			PostalCode: "422001",
		},
		PaymentMethod: "bank_transfer",
	}
}

// --- Tests ---

func TestCreateOrder(t *testing.T) {
	f := newFixture(ureaBag())

	o, err := f.svc.CreateOrder(context.Background(), checkoutReq(5))
	require.NoError(t, err)

	assert.Equal(t, StatusPendingPayment, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Contains(t, o.Number, "AGK-")

	require.Len(t, o.Items, 1)
	item := o.Items[0]
	assert.Equal(t, "Urea 46% N", item.Product.Name)
	assert.Equal(t, 18, item.Product.GSTRate)
	assert.True(t, decimal.RequireFromString("90").Equal(item.UnitPrice))
	assert.True(t, decimal.RequireFromString("450").Equal(item.LineSubtotal))
	assert.True(t, decimal.RequireFromString("81").Equal(item.LineTax))
	assert.True(t, decimal.RequireFromString("531").Equal(item.LineTotal))
	assert.Equal(t, "5+ bags", item.TierLabel)

	// Intra-state: CGST + SGST, no IGST.
	assert.True(t, decimal.RequireFromString("40.50").Equal(o.Tax.CGST))
	assert.True(t, decimal.RequireFromString("40.50").Equal(o.Tax.SGST))
	assert.True(t, decimal.Zero.Equal(o.Tax.IGST))
	assert.True(t, decimal.RequireFromString("531").Equal(o.GrandTotal))
	assert.True(t, decimal.Zero.Equal(o.RoundOff))

	// Stock reserved, cart cleared, history started.
	assert.Equal(t, inventory.Stock{Total: 10, Reserved: 5}, f.ledger.stock("p-urea"))
	assert.Equal(t, []string{"b1"}, f.carts.cleared)
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusPendingPayment, o.History[0].Status)
}

func TestCreateOrder_InterStateUsesIGST(t *testing.T) {
	f := newFixture(ureaBag())
	req := checkoutReq(5)
	req.ShippingAddress.State = "Karnataka"

	o, err := f.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, decimal.Zero.Equal(o.Tax.CGST))
	assert.True(t, decimal.Zero.Equal(o.Tax.SGST))
	assert.True(t, decimal.RequireFromString("81").Equal(o.Tax.IGST))
}

func TestCreateOrder_RoundOff(t *testing.T) {
	p := ureaBag()
	p.BulkTiers = nil
	p.UnitPrice = decimal.RequireFromString("10.55")
	f := newFixture(p)

	o, err := f.svc.CreateOrder(context.Background(), checkoutReq(1))
	require.NoError(t, err)

	// 10.55 + 18% = 12.449 -> line total 12.45, grand total rounds to 12.
	assert.True(t, decimal.RequireFromString("12.45").Equal(o.Items[0].LineTotal))
	assert.True(t, decimal.RequireFromString("12").Equal(o.GrandTotal))
	assert.True(t, decimal.RequireFromString("-0.45").Equal(o.RoundOff))

	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal)
	}
	assert.True(t, sum.Add(o.RoundOff).Equal(o.GrandTotal))
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	f := newFixture(ureaBag())
	req := checkoutReq(5)
	req.Lines = nil

	_, err := f.svc.CreateOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreateOrder_MissingAddressField(t *testing.T) {
	f := newFixture(ureaBag())
	req := checkoutReq(5)
	req.ShippingAddress.State = ""

	_, err := f.svc.CreateOrder(context.Background(), req)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "shipping_address.state", ve.Field)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newFixture(ureaBag())
	req := checkoutReq(5)
	req.Lines = append(req.Lines, LineInput{ProductID: "ghost", Quantity: 1})

	_, err := f.svc.CreateOrder(context.Background(), req)
	require.ErrorIs(t, err, product.ErrNotFound)

	// No partial reservation happened.
	assert.Equal(t, inventory.Stock{Total: 10}, f.ledger.stock("p-urea"))
}

func TestCreateOrder_QuantityBelowMOQ(t *testing.T) {
	p := ureaBag()
	p.MinOrderQty = 5
	f := newFixture(p)

	_, err := f.svc.CreateOrder(context.Background(), checkoutReq(2))

	var qe *product.QuantityOutOfRangeError
	require.ErrorAs(t, err, &qe)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	p := ureaBag()
	p.StockReserved = 8
	f := newFixture(p)

	_, err := f.svc.CreateOrder(context.Background(), checkoutReq(5))

	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 2, ise.Available)
}

func TestCreateOrder_PersistFailureReleasesReservation(t *testing.T) {
	f := newFixture(ureaBag())
	f.orders.createErr = errors.New("db write failed")

	_, err := f.svc.CreateOrder(context.Background(), checkoutReq(5))
	require.Error(t, err)

	assert.Equal(t, inventory.Stock{Total: 10, Reserved: 0}, f.ledger.stock("p-urea"))
	assert.Equal(t, 1, f.ledger.releases)
	assert.Empty(t, f.carts.cleared)
}

func TestSubmitPayment(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)

	o, err = f.svc.SubmitPayment(ctx, o.ID, "b1", "upi", "UTR-12345")
	require.NoError(t, err)

	assert.Equal(t, PaymentSubmitted, o.PaymentStatus)
	assert.Equal(t, "upi", o.PaymentMethod)
	assert.Equal(t, "UTR-12345", o.PaymentReference)
	require.NotNil(t, o.PaymentSubmittedAt)
	assert.Equal(t, StatusPendingPayment, o.Status, "submission alone does not move the order")
}

func TestSubmitPayment_WrongBuyer(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)

	_, err = f.svc.SubmitPayment(ctx, o.ID, "b2", "upi", "")

	var ue *UnauthorizedError
	require.ErrorAs(t, err, &ue)
}

func TestSubmitPayment_AlreadySubmitted(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)

	_, err = f.svc.SubmitPayment(ctx, o.ID, "b1", "upi", "UTR-1")
	require.NoError(t, err)
	_, err = f.svc.SubmitPayment(ctx, o.ID, "b1", "upi", "UTR-2")

	var pe *InvalidPaymentStateError
	require.ErrorAs(t, err, &pe)
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)
	_, err = f.svc.SubmitPayment(ctx, o.ID, "b1", "upi", "UTR-1")
	require.NoError(t, err)

	o, err = f.svc.ConfirmPayment(ctx, o.ID, "staff-1")
	require.NoError(t, err)

	// Confirmation and the paid transition are one atomic effect.
	assert.Equal(t, PaymentConfirmed, o.PaymentStatus)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "staff-1", o.PaymentConfirmedBy)
	require.NotNil(t, o.PaymentConfirmedAt)
	require.Len(t, o.History, 2)
	assert.Equal(t, StatusPaid, o.History[1].Status)
	assert.Equal(t, "staff-1", o.History[1].ActorID)
}

func TestConfirmPayment_NeverSubmitted(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, o.ID, "staff-1")

	var pe *InvalidPaymentStateError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PaymentPending, pe.PaymentStatus)

	// Order unchanged.
	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, stored.Status)
	assert.Equal(t, PaymentPending, stored.PaymentStatus)
}

func TestTransitionStatus_PaidNotDirectlySettable(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)
	_, err = f.svc.SubmitPayment(ctx, o.ID, "b1", "upi", "UTR-1")
	require.NoError(t, err)

	_, err = f.svc.TransitionStatus(ctx, o.ID, "staff-1", StatusPaid, "")

	var te *InvalidTransitionError
	require.ErrorAs(t, err, &te)
}

func TestTransitionStatus_NonAdjacentRejected(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)

	_, err = f.svc.TransitionStatus(ctx, o.ID, "staff-1", StatusAccepted, "")

	var te *InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusPendingPayment, te.From)
	assert.Equal(t, StatusAccepted, te.To)
}

func TestTransitionStatus_UnknownStatus(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)

	_, err = f.svc.TransitionStatus(ctx, o.ID, "staff-1", Status("shipped"), "")

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestTransitionStatus_AcceptDeductsStock(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o := mustReachPaid(t, f, 5)

	o, err := f.svc.TransitionStatus(ctx, o.ID, "staff-1", StatusAccepted, "packing")
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, o.Status)
	assert.Equal(t, inventory.Stock{Total: 5, Reserved: 0}, f.ledger.stock("p-urea"))
}

func TestTransitionStatus_ConcurrentAcceptsSerialize(t *testing.T) {
	f := newFixture(ureaBag())
	o := mustReachPaid(t, f, 5)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.TransitionStatus(context.Background(), o.ID, "staff-1", StatusAccepted, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		if err == nil {
			won++
			continue
		}
		var te *InvalidTransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, StatusAccepted, te.From, "loser observes the post-transition state")
		lost++
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, callers-1, lost)
	assert.Equal(t, 1, f.ledger.deducts)
	assert.Equal(t, inventory.Stock{Total: 5, Reserved: 0}, f.ledger.stock("p-urea"))
}

type updateCtxKey struct{}

func TestTransitionStatus_DeductRunsInUpdateContext(t *testing.T) {
	f := newFixture(ureaBag())
	f.orders.wrapCtx = func(ctx context.Context) context.Context {
		return context.WithValue(ctx, updateCtxKey{}, "update-scope")
	}
	o := mustReachPaid(t, f, 5)

	_, err := f.svc.TransitionStatus(context.Background(), o.ID, "staff-1", StatusAccepted, "")
	require.NoError(t, err)

	// The deduction must run with the context the repository scoped to the
	// order update, not the caller's, so both share one transaction.
	require.NotNil(t, f.ledger.deductCtx)
	assert.Equal(t, "update-scope", f.ledger.deductCtx.Value(updateCtxKey{}))
}

func TestTransitionStatus_DeliveredSetsTimestamp(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o := mustReachPaid(t, f, 5)

	for _, target := range []Status{StatusAccepted, StatusInTransit, StatusDelivered} {
		var err error
		o, err = f.svc.TransitionStatus(ctx, o.ID, "staff-1", target, "")
		require.NoError(t, err)
	}

	assert.Equal(t, StatusDelivered, o.Status)
	require.NotNil(t, o.DeliveredAt)
	assert.Len(t, o.History, 5)
}

func TestCancelOrder_ReleasesReservation(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)

	o, err = f.svc.CancelOrder(ctx, o.ID, "b1", "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "changed my mind", o.CancelReason)
	require.NotNil(t, o.CancelledAt)
	assert.Equal(t, inventory.Stock{Total: 10, Reserved: 0}, f.ledger.stock("p-urea"))
}

func TestCancelOrder_AfterAcceptanceKeepsDeduction(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o := mustReachPaid(t, f, 5)
	_, err := f.svc.TransitionStatus(ctx, o.ID, "staff-1", StatusAccepted, "")
	require.NoError(t, err)

	o, err = f.svc.CancelOrder(ctx, o.ID, "staff-1", "buyer default")
	require.NoError(t, err)

	// Deducted units do not come back; only Add/Adjust restores stock.
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, inventory.Stock{Total: 5, Reserved: 0}, f.ledger.stock("p-urea"))
}

func TestCancelOrder_InTransitRejected(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()
	o := mustReachPaid(t, f, 5)
	for _, target := range []Status{StatusAccepted, StatusInTransit} {
		var err error
		o, err = f.svc.TransitionStatus(ctx, o.ID, "staff-1", target, "")
		require.NoError(t, err)
	}

	_, err := f.svc.CancelOrder(ctx, o.ID, "staff-1", "too late")

	var te *InvalidTransitionError
	require.ErrorAs(t, err, &te)
}

func TestOrderLifecycle_StockWalkthrough(t *testing.T) {
	f := newFixture(ureaBag())
	ctx := context.Background()

	// Create: 5 of 10 reserved.
	o, err := f.svc.CreateOrder(ctx, checkoutReq(5))
	require.NoError(t, err)
	assert.Equal(t, inventory.Stock{Total: 10, Reserved: 5}, f.ledger.stock("p-urea"))

	// Cancel: reservation fully returned.
	_, err = f.svc.CancelOrder(ctx, o.ID, "b1", "retry")
	require.NoError(t, err)
	assert.Equal(t, inventory.Stock{Total: 10, Reserved: 0}, f.ledger.stock("p-urea"))

	// Recreate and accept: stock permanently committed.
	o = mustReachPaid(t, f, 5)
	_, err = f.svc.TransitionStatus(ctx, o.ID, "staff-1", StatusAccepted, "")
	require.NoError(t, err)
	assert.Equal(t, inventory.Stock{Total: 5, Reserved: 0}, f.ledger.stock("p-urea"))
}

func mustReachPaid(t *testing.T, f *fixture, qty int) *Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, checkoutReq(qty))
	require.NoError(t, err)
	_, err = f.svc.SubmitPayment(ctx, o.ID, "b1", "upi", "UTR-1")
	require.NoError(t, err)
	o, err = f.svc.ConfirmPayment(ctx, o.ID, "staff-1")
	require.NoError(t, err)
	return o
}
