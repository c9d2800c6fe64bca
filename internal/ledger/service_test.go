package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	ledgerevents "github.com/farmconnect/farmconnect-backend/internal/ledger/events"
	"github.com/farmconnect/farmconnect-backend/internal/orders"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/dbtest"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
)

type fixture struct {
	conn       *gorm.DB
	svc        Service
	buyer      *models.User
	farmerUser *models.User
	farmer     *models.FarmerProfile
	apples     *models.Product
	pears      *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.Wrap(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	recorder, err := ledgerevents.NewRecorder(ledgerevents.NewRepository(conn))
	require.NoError(t, err)
	workflow, err := orders.NewService(orders.NewRepository(conn), client, publisher, recorder, nil)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), client, publisher, recorder, workflow)
	require.NoError(t, err)

	farmerUser, farmer := dbtest.MustCreateFarmer(t, conn)
	return &fixture{
		conn:       conn,
		svc:        svc,
		buyer:      dbtest.MustCreateUser(t, conn, enums.UserTypeBuyer),
		farmerUser: farmerUser,
		farmer:     farmer,
		apples:     dbtest.MustCreateProduct(t, conn, farmer.ID, "1.25", 10),
		pears:      dbtest.MustCreateProduct(t, conn, farmer.ID, "3.10", 10),
	}
}

// order totals 3 x 1.25 + 2 x 3.10 = 9.95
func (f *fixture) order(t *testing.T, status enums.OrderStatus) *models.Order {
	t.Helper()
	return dbtest.MustCreateOrder(t, f.conn, f.buyer.ID, f.farmer.ID, status, map[*models.Product]int{f.apples: 3, f.pears: 2})
}

func TestRecordPaymentSettlesConfirmedOrder(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusConfirmed)

	payment, err := f.svc.RecordPayment(context.Background(), f.buyer.ID, order.ID, RecordPaymentInput{
		Amount:        decimal.RequireFromString("9.95"),
		TransactionID: " txn-123 ",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "txn-123", payment.TransactionID)
	assert.Equal(t, enums.OrderStatusPaid, payment.OrderStatus)
	assert.NotNil(t, payment.PaidAt)

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)

	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.Payment{}, "order_id = ?", order.ID))
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.LedgerEvent{}, "order_id = ? AND type = ?", order.ID, enums.LedgerEventPaymentRecorded))
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.LedgerEvent{}, "order_id = ? AND type = ?", order.ID, enums.LedgerEventStatusAdvanced))
	assert.EqualValues(t, 1, dbtest.Count(t, f.conn, &models.OutboxEvent{}, "aggregate_id = ? AND event_type = ?", payment.ID, enums.EventPaymentRecorded))
}

func TestRecordPaymentAmountMismatch(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusConfirmed)

	_, err := f.svc.RecordPayment(context.Background(), f.buyer.ID, order.ID, RecordPaymentInput{
		Amount:        decimal.RequireFromString("9.94"),
		TransactionID: "txn-1",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAmountMismatch))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "9.95", details["expected"])
	assert.Equal(t, "9.94", details["received"])

	assert.EqualValues(t, 0, dbtest.Count(t, f.conn, &models.Payment{}))
	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
}

func TestRecordPaymentRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	input := RecordPaymentInput{Amount: decimal.RequireFromString("9.95"), TransactionID: "txn-1"}

	for _, status := range []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusShipped, enums.OrderStatusCancelled} {
		order := f.order(t, status)
		_, err := f.svc.RecordPayment(ctx, f.buyer.ID, order.ID, input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderNotConfirmed), status)
	}
}

func TestRecordPaymentTwiceFailsNotConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.OrderStatusConfirmed)
	amount := decimal.RequireFromString("9.95")

	_, err := f.svc.RecordPayment(ctx, f.buyer.ID, order.ID, RecordPaymentInput{Amount: amount, TransactionID: "txn-1"})
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, f.buyer.ID, order.ID, RecordPaymentInput{Amount: amount, TransactionID: "txn-2"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderNotConfirmed))
}

func TestRecordPaymentDuplicateTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	amount := decimal.RequireFromString("9.95")

	first := f.order(t, enums.OrderStatusConfirmed)
	second := f.order(t, enums.OrderStatusConfirmed)
	_, err := f.svc.RecordPayment(ctx, f.buyer.ID, first.ID, RecordPaymentInput{Amount: amount, TransactionID: "txn-1"})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, f.buyer.ID, second.ID, RecordPaymentInput{Amount: amount, TransactionID: "txn-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestRecordPaymentValidatesCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.OrderStatusConfirmed)
	amount := decimal.RequireFromString("9.95")

	stranger := dbtest.MustCreateUser(t, f.conn, enums.UserTypeBuyer)
	_, err := f.svc.RecordPayment(ctx, stranger.ID, order.ID, RecordPaymentInput{Amount: amount, TransactionID: "txn-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.RecordPayment(ctx, f.buyer.ID, uuid.New(), RecordPaymentInput{Amount: amount, TransactionID: "txn-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.RecordPayment(ctx, f.buyer.ID, order.ID, RecordPaymentInput{Amount: amount, TransactionID: "   "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordPaymentNonPositiveAmountIsMismatch(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.OrderStatusConfirmed)

	for _, amount := range []string{"0", "-9.95"} {
		_, err := f.svc.RecordPayment(context.Background(), f.buyer.ID, order.ID, RecordPaymentInput{
			Amount:        decimal.RequireFromString(amount),
			TransactionID: "txn-1",
		})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAmountMismatch), "amount %s: %v", amount, err)
		details, ok := pkgerrors.As(err).Details().(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "9.95", details["expected"])
		assert.Equal(t, decimal.RequireFromString(amount).StringFixed(2), details["received"])
	}
	assert.EqualValues(t, 0, dbtest.Count(t, f.conn, &models.Payment{}, "order_id = ?", order.ID))
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.OrderStatusConfirmed)
	_, err := f.svc.RecordPayment(ctx, f.buyer.ID, order.ID, RecordPaymentInput{
		Amount:        decimal.RequireFromString("9.95"),
		TransactionID: "txn-1",
	})
	require.NoError(t, err)

	events, err := f.svc.ListEvents(ctx, f.buyer.ID, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	farmerView, err := f.svc.ListEvents(ctx, f.farmerUser.ID, order.ID)
	require.NoError(t, err)
	assert.Len(t, farmerView, 2)

	stranger := dbtest.MustCreateUser(t, f.conn, enums.UserTypeBuyer)
	_, err = f.svc.ListEvents(ctx, stranger.ID, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
