package cart

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmconnect/farmconnect-backend/internal/checkout/helpers"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

type memoryStore struct {
	carts map[uuid.UUID][]Line
	err   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{carts: map[uuid.UUID][]Line{}}
}

func (m *memoryStore) Load(_ context.Context, buyerID uuid.UUID) ([]Line, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]Line(nil), m.carts[buyerID]...), nil
}

func (m *memoryStore) Save(_ context.Context, buyerID uuid.UUID, lines []Line) error {
	if len(lines) == 0 {
		delete(m.carts, buyerID)
		return nil
	}
	m.carts[buyerID] = append([]Line(nil), lines...)
	return nil
}

func (m *memoryStore) Clear(_ context.Context, buyerID uuid.UUID) error {
	delete(m.carts, buyerID)
	return nil
}

type stubProducts struct {
	products map[uuid.UUID]models.Product
}

func (s *stubProducts) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := map[uuid.UUID]models.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubProducts) add(price string, qty int) models.Product {
	p := models.Product{
		ID:                uuid.New(),
		FarmerID:          uuid.New(),
		Name:              "Product",
		Price:             decimal.RequireFromString(price),
		QuantityAvailable: qty,
	}
	s.products[p.ID] = p
	return p
}

func newTestService(t *testing.T) (Service, *memoryStore, *stubProducts) {
	t.Helper()
	store := newMemoryStore()
	products := &stubProducts{products: map[uuid.UUID]models.Product{}}
	svc, err := NewService(store, products)
	require.NoError(t, err)
	return svc, store, products
}

func TestAddAccumulatesQuantity(t *testing.T) {
	svc, store, products := newTestService(t)
	buyer := uuid.New()
	tomato := products.add("2.50", 10)

	_, err := svc.Add(context.Background(), buyer, tomato.ID, 2)
	require.NoError(t, err)
	view, err := svc.Add(context.Background(), buyer, tomato.ID, 3)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("12.50")))
	assert.Empty(t, view.Warnings)
	assert.Equal(t, 5, store.carts[buyer][0].Quantity)
}

func TestAddCapsToStockWithWarning(t *testing.T) {
	svc, store, products := newTestService(t)
	buyer := uuid.New()
	eggs := products.add("4.00", 3)

	view, err := svc.Add(context.Background(), buyer, eggs.ID, 5)
	require.NoError(t, err)

	require.Len(t, view.Warnings, 1)
	assert.Equal(t, enums.CartWarningQuantityAdjusted, view.Warnings[0].Type)
	assert.Equal(t, 5, view.Warnings[0].Requested)
	assert.Equal(t, 3, view.Warnings[0].Adjusted)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, 3, store.carts[buyer][0].Quantity)
}

func TestAddRejectsOutOfStockAndBadInput(t *testing.T) {
	svc, _, products := newTestService(t)
	buyer := uuid.New()
	soldOut := products.add("1.00", 0)

	_, err := svc.Add(context.Background(), buyer, soldOut.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	_, err = svc.Add(context.Background(), buyer, soldOut.ID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Add(context.Background(), buyer, uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAddNeverOverflowsLineQuantity(t *testing.T) {
	svc, store, products := newTestService(t)
	buyer := uuid.New()
	ctx := context.Background()
	beans := products.add("2.00", 5)

	_, err := svc.Add(ctx, buyer, beans.ID, 2)
	require.NoError(t, err)

	_, err = svc.Add(ctx, buyer, beans.ID, math.MaxInt)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 2, store.carts[buyer][0].Quantity)

	view, err := svc.Add(ctx, buyer, beans.ID, helpers.MaxLineQuantity)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("10.00")))
	require.Len(t, view.Warnings, 1)
	assert.Equal(t, helpers.MaxLineQuantity, view.Warnings[0].Requested)
	assert.Equal(t, 5, store.carts[buyer][0].Quantity)

	store.carts[buyer] = []Line{{ProductID: beans.ID, Quantity: math.MaxInt - 1}}
	view, err = svc.Add(ctx, buyer, beans.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Total.IsPositive())

	_, err = svc.Update(ctx, buyer, beans.ID, helpers.MaxLineQuantity+1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetDropsNonPositiveLines(t *testing.T) {
	svc, store, products := newTestService(t)
	buyer := uuid.New()
	kale := products.add("3.00", 4)
	leeks := products.add("1.50", 4)
	store.carts[buyer] = []Line{
		{ProductID: kale.ID, Quantity: math.MinInt},
		{ProductID: leeks.ID, Quantity: 2},
	}

	view, err := svc.Get(context.Background(), buyer)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, leeks.ID, view.Items[0].ProductID)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("3.00")))
	require.Len(t, store.carts[buyer], 1)
	assert.Equal(t, leeks.ID, store.carts[buyer][0].ProductID)
}

func TestUpdateSetsExactQuantityAndRemovesOnZero(t *testing.T) {
	svc, store, products := newTestService(t)
	buyer := uuid.New()
	milk := products.add("1.20", 8)

	_, err := svc.Add(context.Background(), buyer, milk.ID, 5)
	require.NoError(t, err)

	view, err := svc.Update(context.Background(), buyer, milk.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity)

	view, err = svc.Update(context.Background(), buyer, milk.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.NotContains(t, store.carts, buyer)
}

func TestRemoveMissingLineIsNoop(t *testing.T) {
	svc, _, products := newTestService(t)
	buyer := uuid.New()
	honey := products.add("9.99", 2)

	_, err := svc.Add(context.Background(), buyer, honey.ID, 1)
	require.NoError(t, err)

	view, err := svc.Remove(context.Background(), buyer, uuid.New())
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestGetRevalidatesAgainstLiveStock(t *testing.T) {
	svc, store, products := newTestService(t)
	buyer := uuid.New()
	apples := products.add("0.80", 10)
	pears := products.add("1.10", 10)

	_, err := svc.Add(context.Background(), buyer, apples.ID, 6)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), buyer, pears.ID, 2)
	require.NoError(t, err)

	apples.QuantityAvailable = 4
	products.products[apples.ID] = apples
	delete(products.products, pears.ID)

	view, err := svc.Get(context.Background(), buyer)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 4, view.Items[0].Quantity)
	assert.True(t, view.Items[0].Subtotal.Equal(decimal.RequireFromString("3.20")))

	types := []enums.CartWarningType{}
	for _, w := range view.Warnings {
		types = append(types, w.Type)
	}
	assert.ElementsMatch(t, []enums.CartWarningType{enums.CartWarningQuantityAdjusted, enums.CartWarningProductUnavailable}, types)
	require.Len(t, store.carts[buyer], 1)
}

func TestClearAndLines(t *testing.T) {
	svc, _, products := newTestService(t)
	buyer := uuid.New()
	beans := products.add("3.00", 4)

	_, err := svc.Add(context.Background(), buyer, beans.ID, 2)
	require.NoError(t, err)

	lines, err := svc.Lines(context.Background(), buyer)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, beans.ID, lines[0].ProductID)

	require.NoError(t, svc.Clear(context.Background(), buyer))
	lines, err = svc.Lines(context.Background(), buyer)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestStoreErrorsSurfaceAsDependency(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.err = errors.New("redis down")

	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
