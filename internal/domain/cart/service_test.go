package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/agrikart/internal/domain/inventory"
	"github.com/xenking/agrikart/internal/domain/product"
)

// --- Mock implementations ---

type mockCartRepo struct {
	byBuyer map[string]*Cart
	saveErr error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{byBuyer: make(map[string]*Cart)}
}

func (m *mockCartRepo) Get(_ context.Context, buyerID string) (*Cart, error) {
	c, ok := m.byBuyer[buyerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *Cart) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	m.byBuyer[c.BuyerID] = &cp
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, buyerID string) error {
	if _, ok := m.byBuyer[buyerID]; !ok {
		return ErrNotFound
	}
	delete(m.byBuyer, buyerID)
	return nil
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

// --- Helpers ---

func seedProduct(id string, price string, stockTotal int) *product.Product {
	return &product.Product{
		ID:          id,
		Name:        "Product " + id,
		UnitPrice:   decimal.RequireFromString(price),
		GSTRate:     18,
		StockTotal:  stockTotal,
		MinOrderQty: 1,
		Active:      true,
	}
}

func newService(products ...*product.Product) (*Service, *mockCartRepo) {
	byID := make(map[string]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	carts := newMockCartRepo()
	return NewService(carts, &mockProductRepo{byID: byID}), carts
}

// --- Tests ---

func TestGet_EmptyCartForNewBuyer(t *testing.T) {
	svc, _ := newService()

	c, err := svc.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, decimal.Zero.Equal(c.EstimatedTotal))
}

func TestAddItem_CreatesCartLazily(t *testing.T) {
	svc, carts := newService(seedProduct("p1", "100", 50))

	c, err := svc.AddItem(context.Background(), "b1", "p1", 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("200").Equal(c.Subtotal))
	assert.True(t, decimal.RequireFromString("36").Equal(c.EstimatedTax))
	assert.True(t, decimal.RequireFromString("236").Equal(c.EstimatedTotal))
	assert.Contains(t, carts.byBuyer, "b1")
}

func TestAddItem_AggregatesExistingLine(t *testing.T) {
	svc, _ := newService(seedProduct("p1", "100", 50))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "b1", "p1", 2)
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, "b1", "p1", 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 5, c.ItemCount)
}

func TestAddItem_BelowMinimumOrderQuantity(t *testing.T) {
	p := seedProduct("p1", "100", 50)
	p.MinOrderQty = 5
	svc, carts := newService(p)

	_, err := svc.AddItem(context.Background(), "b1", "p1", 3)

	var qe *product.QuantityOutOfRangeError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 5, qe.Min)
	assert.NotContains(t, carts.byBuyer, "b1", "failed add must not mutate cart state")
}

func TestAddItem_AboveMaximumOrderQuantity(t *testing.T) {
	p := seedProduct("p1", "100", 500)
	p.MaxOrderQty = 10
	svc, _ := newService(p)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "b1", "p1", 11)
	var qe *product.QuantityOutOfRangeError
	require.ErrorAs(t, err, &qe)

	// Aggregation counts toward the cap as well.
	_, err = svc.AddItem(ctx, "b1", "p1", 6)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "b1", "p1", 6)
	require.ErrorAs(t, err, &qe)
}

func TestAddItem_InsufficientStock(t *testing.T) {
	p := seedProduct("p1", "100", 10)
	p.StockReserved = 8
	svc, _ := newService(p)

	_, err := svc.AddItem(context.Background(), "b1", "p1", 5)

	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 2, ise.Available)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, _ := newService()

	_, err := svc.AddItem(context.Background(), "b1", "ghost", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestUpdateItem(t *testing.T) {
	svc, _ := newService(seedProduct("p1", "100", 50))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "b1", "p1", 2)
	require.NoError(t, err)

	c, err := svc.UpdateItem(ctx, "b1", "p1", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Items[0].Quantity)

	_, err = svc.UpdateItem(ctx, "b1", "p2", 1)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem(t *testing.T) {
	svc, _ := newService(seedProduct("p1", "100", 50), seedProduct("p2", "40", 50))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "b1", "p1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "b1", "p2", 1)
	require.NoError(t, err)

	c, err := svc.RemoveItem(ctx, "b1", "p1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p2", c.Items[0].ProductID)
	assert.True(t, decimal.RequireFromString("40").Equal(c.Subtotal))

	_, err = svc.RemoveItem(ctx, "b1", "p1")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestClear(t *testing.T) {
	svc, carts := newService(seedProduct("p1", "100", 50))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "b1", "p1", 2)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "b1"))
	assert.NotContains(t, carts.byBuyer, "b1")

	// Clearing again is a no-op.
	require.NoError(t, svc.Clear(ctx, "b1"))
}

func TestRecompute_PicksUpPriceChange(t *testing.T) {
	p := seedProduct("p1", "100", 50)
	svc, _ := newService(p)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "b1", "p1", 2)
	require.NoError(t, err)

	// Catalog price changes after the item was staged.
	p.UnitPrice = decimal.RequireFromString("120")

	c, err := svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("240").Equal(c.Subtotal))
	assert.True(t, decimal.RequireFromString("120").Equal(c.Items[0].UnitPrice))
}

func TestRecompute_DropsRetiredProduct(t *testing.T) {
	p := seedProduct("p1", "100", 50)
	svc, _ := newService(p)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "b1", "p1", 2)
	require.NoError(t, err)

	p.Active = false

	c, err := svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, decimal.Zero.Equal(c.EstimatedTotal))
}

func TestRecompute_AppliesBulkTier(t *testing.T) {
	p := seedProduct("p1", "100", 50)
	p.BulkTiers = []product.BulkTier{
		{MinQty: 5, UnitPrice: decimal.RequireFromString("90"), DiscountPct: decimal.RequireFromString("10")},
	}
	svc, _ := newService(p)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, "b1", "p1", 5)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("450").Equal(c.Subtotal))
	assert.True(t, decimal.RequireFromString("90").Equal(c.Items[0].UnitPrice))
}
