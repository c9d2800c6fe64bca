package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/internal/cart"
	ledgerevents "github.com/farmconnect/farmconnect-backend/internal/ledger/events"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/dbtest"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/metrics"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
)

type stubCart struct {
	lines    map[uuid.UUID][]cart.Line
	cleared  []uuid.UUID
	clearErr error
}

func (c *stubCart) Lines(_ context.Context, buyerID uuid.UUID) ([]cart.Line, error) {
	return c.lines[buyerID], nil
}

func (c *stubCart) Clear(_ context.Context, buyerID uuid.UUID) error {
	c.cleared = append(c.cleared, buyerID)
	return c.clearErr
}

type stubOutcomes struct {
	outcomes []string
}

func (s *stubOutcomes) CheckoutOutcome(outcome string) {
	s.outcomes = append(s.outcomes, outcome)
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	cart     *stubCart
	outcomes *stubOutcomes
	buyer    *models.User
	farmer   *models.FarmerProfile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	recorder, err := ledgerevents.NewRecorder(ledgerevents.NewRepository(conn))
	require.NoError(t, err)
	carts := &stubCart{lines: map[uuid.UUID][]cart.Line{}}
	outcomes := &stubOutcomes{}
	svc, err := NewService(
		db.Wrap(conn),
		NewRepository(conn),
		nil,
		carts,
		outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		recorder,
		outcomes,
		logger.Nop(),
	)
	require.NoError(t, err)

	_, farmer := dbtest.MustCreateFarmer(t, conn)
	return &fixture{
		conn:     conn,
		svc:      svc,
		cart:     carts,
		outcomes: outcomes,
		buyer:    dbtest.MustCreateUser(t, conn, enums.UserTypeBuyer),
		farmer:   farmer,
	}
}

func items(pairs ...any) CheckoutInput {
	var input CheckoutInput
	for i := 0; i+1 < len(pairs); i += 2 {
		input.Items = append(input.Items, ItemInput{ProductID: pairs[i].(uuid.UUID), Quantity: pairs[i+1].(int)})
	}
	return input
}

func TestCheckoutDecrementsStockThenRejectsShortfall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "4.00", 5)

	result, err := f.svc.Checkout(ctx, f.buyer.ID, items(product.ID, 3))
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	order := result.Orders[0]
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, f.farmer.ID, order.FarmerID)
	assert.Equal(t, "12.00", order.TotalAmount.StringFixed(2))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.True(t, order.Items[0].PriceAtTime.Equal(decimal.RequireFromString("4.00")))
	assert.Equal(t, product.Name, order.Items[0].ProductName)
	assert.Equal(t, 2, dbtest.ProductStock(t, f.conn, product.ID))

	_, err = f.svc.Checkout(ctx, f.buyer.ID, items(product.ID, 3))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, product.ID, details["product_id"])
	assert.Equal(t, 3, details["requested"])
	assert.Equal(t, 2, details["available"])

	assert.Equal(t, 2, dbtest.ProductStock(t, f.conn, product.ID))
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.Order{}))
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.OrderItem{}))
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.LedgerEvent{}, "type = ?", enums.LedgerEventOrderCreated))
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderCreated))
	assert.Equal(t, []string{metrics.CheckoutSucceeded, metrics.CheckoutInsufficientStock}, f.outcomes.outcomes)
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	plenty := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "1.00", 10)
	scarce := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "1.00", 1)

	_, err := f.svc.Checkout(context.Background(), f.buyer.ID, items(plenty.ID, 4, scarce.ID, 2))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	assert.Equal(t, 10, dbtest.ProductStock(t, f.conn, plenty.ID))
	assert.Equal(t, 1, dbtest.ProductStock(t, f.conn, scarce.ID))
	assert.EqualValues(t, 0, dbtest.Count(t, f.conn, &models.Order{}))
	assert.EqualValues(t, 0, dbtest.Count(t, f.conn, &models.OrderItem{}))
	assert.EqualValues(t, 0, dbtest.Count(t, f.conn, &models.LedgerEvent{}))
	assert.EqualValues(t, 0, dbtest.Count(t, f.conn, &models.OutboxEvent{}))
}

func TestCheckoutSumsDuplicateLines(t *testing.T) {
	f := newFixture(t)
	product := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "2.00", 5)

	_, err := f.svc.Checkout(context.Background(), f.buyer.ID, items(product.ID, 3, product.ID, 3))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	result, err := f.svc.Checkout(context.Background(), f.buyer.ID, items(product.ID, 2, product.ID, 3))
	require.NoError(t, err)
	require.Len(t, result.Orders[0].Items, 1)
	assert.Equal(t, 5, result.Orders[0].Items[0].Quantity)
	assert.Equal(t, 0, dbtest.ProductStock(t, f.conn, product.ID))
}

func TestCheckoutSplitsOrdersPerFarmer(t *testing.T) {
	f := newFixture(t)
	_, otherFarmer := dbtest.MustCreateFarmer(t, f.conn)
	mine := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "1.50", 5)
	alsoMine := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "2.00", 5)
	theirs := dbtest.MustCreateProduct(t, f.conn, otherFarmer.ID, "3.00", 5)

	result, err := f.svc.Checkout(context.Background(), f.buyer.ID, items(mine.ID, 2, alsoMine.ID, 1, theirs.ID, 1))
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
	assert.Equal(t, "8.00", result.Total.StringFixed(2))

	names := map[uuid.UUID]string{mine.ID: mine.Name, alsoMine.ID: alsoMine.Name, theirs.ID: theirs.Name}
	byFarmer := map[uuid.UUID]string{}
	for _, o := range result.Orders {
		byFarmer[o.FarmerID] = o.TotalAmount.StringFixed(2)
		assert.Equal(t, f.buyer.ID, o.BuyerID)
		for _, item := range o.Items {
			assert.Equal(t, names[item.ProductID], item.ProductName)
		}
	}
	assert.Equal(t, "5.00", byFarmer[f.farmer.ID])
	assert.Equal(t, "3.00", byFarmer[otherFarmer.ID])
	assert.EqualValues(t, 2, dbtest.Count(t, f.conn, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderCreated))
}

func TestCheckoutSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	product := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "2.00", 5)

	result, err := f.svc.Checkout(context.Background(), f.buyer.ID, items(product.ID, 1))
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("price", decimal.RequireFromString("9.00")).Error)

	var item models.OrderItem
	require.NoError(t, f.conn.First(&item, "order_id = ?", result.Orders[0].ID).Error)
	assert.Equal(t, "2.00", item.PriceAtTime.StringFixed(2))
}

func TestCheckoutFromStoredCart(t *testing.T) {
	f := newFixture(t)
	product := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "1.00", 5)
	f.cart.lines[f.buyer.ID] = []cart.Line{{ProductID: product.ID, Quantity: 2}}

	result, err := f.svc.Checkout(context.Background(), f.buyer.ID, CheckoutInput{})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, 3, dbtest.ProductStock(t, f.conn, product.ID))
	assert.Equal(t, []uuid.UUID{f.buyer.ID}, f.cart.cleared)
}

func TestCheckoutExplicitItemsKeepCart(t *testing.T) {
	f := newFixture(t)
	product := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "1.00", 5)
	f.cart.lines[f.buyer.ID] = []cart.Line{{ProductID: product.ID, Quantity: 2}}

	_, err := f.svc.Checkout(context.Background(), f.buyer.ID, items(product.ID, 1))
	require.NoError(t, err)
	assert.Empty(t, f.cart.cleared)
}

func TestCheckoutCartClearFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	product := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "1.00", 5)
	f.cart.lines[f.buyer.ID] = []cart.Line{{ProductID: product.ID, Quantity: 1}}
	f.cart.clearErr = errors.New("redis down")

	result, err := f.svc.Checkout(context.Background(), f.buyer.ID, CheckoutInput{})
	require.NoError(t, err)
	assert.Len(t, result.Orders, 1)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, f.conn, f.farmer.ID, "1.00", 5)

	_, err := f.svc.Checkout(ctx, f.buyer.ID, CheckoutInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, f.buyer.ID, items(product.ID, 0))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, f.buyer.ID, items(uuid.New(), 1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Checkout(ctx, uuid.Nil, items(product.ID, 1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	assert.Equal(t, 5, dbtest.ProductStock(t, f.conn, product.ID))
	assert.Contains(t, f.outcomes.outcomes, metrics.CheckoutFailed)
}
